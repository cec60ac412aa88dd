package console_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/funnel/internal/presentation/tui"
	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/adapters/console"
	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
	"github.com/aretw0/funnel/pkg/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, input string) (string, *memory.Store) {
	t.Helper()

	b := dsl.New("course")
	b.Add("hello").Message("Welcome")
	b.Add("ask").Buttons("Interested?").Choice("Buy", "pay").Choice("Later", "bye")
	b.Add("pay").Payment("Course", 10, "")
	b.Add("thanks").Message("Thanks for buying")
	b.Add("bye").Message("Bye")

	var out bytes.Buffer
	con := console.New(&out, console.WithRenderer(tui.Plain))
	store := memory.NewStore()
	ctrl := runtime.NewController(b.Build(), store,
		runtime.WithDeliverer(con),
		runtime.WithPaymentInitiator(payments.NewDemo()),
	)

	err := con.Play(context.Background(), ctrl, strings.NewReader(input), "local", "course")
	require.NoError(t, err)
	return out.String(), store
}

func TestPlay_PaymentPath(t *testing.T) {
	out, store := play(t, "1\n/pay\n")

	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "1. Buy")
	assert.Contains(t, out, "2. Later")
	assert.Contains(t, out, "Price: 10 RUB")
	assert.Contains(t, out, "[Pay](https://demo.yookassa.ru/pay/order_")
	assert.Contains(t, out, "Thanks for buying")
	assert.Contains(t, out, "Session finished: PAID")

	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.SessionPaid, sessions[0].Status)
}

func TestPlay_StaleAndQuit(t *testing.T) {
	out, store := play(t, "/pay\n2\n")

	assert.Contains(t, out, "Nothing to pay for right now.")
	assert.Contains(t, out, "Bye")
	assert.Contains(t, out, "Session finished: COMPLETED")
	assert.NotContains(t, out, "Thanks for buying")

	out, _ = play(t, "/quit\n1\n")
	assert.NotContains(t, out, "Price:")

	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, sessions[0].Status)
}

func TestTrigger(t *testing.T) {
	con := console.New(&bytes.Buffer{}, console.WithRenderer(tui.Plain))
	require.NoError(t, con.Deliver(context.Background(), "v", "f", []domain.Action{{
		Kind:    domain.ActionSendChoices,
		NodeID:  "ask",
		Choices: []domain.Choice{{Label: "Go", Target: "next"}, {Label: "Continue"}},
	}}))

	assert.Equal(t, domain.ExplicitTarget("next").At("ask"), con.Trigger("1"))
	assert.Equal(t, domain.Continue().At("ask"), con.Trigger("2"))
	assert.Equal(t, domain.FreeText("3"), con.Trigger("3"))
	assert.Equal(t, domain.FreeText("hello"), con.Trigger("hello"))
}
