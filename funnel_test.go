package funnel_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/funnel"
	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
	"github.com/aretw0/funnel/pkg/payments"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu      sync.Mutex
	actions []domain.Action
}

func (i *inbox) Deliver(_ context.Context, _, _ string, actions []domain.Action) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.actions = append(i.actions, actions...)
	return nil
}

func (i *inbox) texts() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []string
	for _, a := range i.actions {
		out = append(out, a.Text)
	}
	return out
}

func TestEngine_ContinueToCompletion(t *testing.T) {
	b := dsl.New("steps")
	for _, id := range []string{"n0", "n1", "n2", "n3"} {
		b.Add(id).Buttons(id)
	}
	eng, err := funnel.New(b.Build())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := eng.Advance(ctx, "v", "steps", domain.Start())
	require.NoError(t, err)
	assert.Equal(t, "n0", res.Session.CurrentNodeID)
	id := res.Session.ID

	for i := 1; i < 4; i++ {
		res, err = eng.Advance(ctx, "v", "steps", domain.Continue())
		require.NoError(t, err)
		assert.Equal(t, domain.SessionActive, res.Session.Status)
	}

	res, err = eng.Advance(ctx, "v", "steps", domain.Continue())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, res.Session.Status)
	assert.True(t, res.Last().Terminal())

	_, err = eng.Advance(ctx, "v", "steps", domain.Continue())
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	stored, err := eng.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, stored.Status)
}

func TestEngine_StartIsIdempotent(t *testing.T) {
	b := dsl.New("f")
	b.Add("a").Buttons("A")
	b.Add("b").Buttons("B")
	eng, err := funnel.New(b.Build())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := eng.Advance(ctx, "v", "f", domain.Start())
	require.NoError(t, err)
	_, err = eng.Advance(ctx, "v", "f", domain.Continue())
	require.NoError(t, err)
	second, err := eng.Advance(ctx, "v", "f", domain.Start())
	require.NoError(t, err)

	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, "a", second.Session.CurrentNodeID)

	all, err := eng.Sessions().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEngine_RacingContinue(t *testing.T) {
	b := dsl.New("f")
	b.Add("a").Buttons("A")
	b.Add("b").Buttons("B")
	b.Add("c").Buttons("C")
	eng, err := funnel.New(b.Build())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Advance(ctx, "v", "f", domain.Start())
	require.NoError(t, err)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Advance(ctx, "v", "f", domain.Continue().At("a"))
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSessionConflict)
		lost++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, racers-1, lost)

	s, err := eng.Sessions().FindActive(ctx, "v", "f")
	require.NoError(t, err)
	assert.Equal(t, "b", s.CurrentNodeID)
}

func TestEngine_OverdueDelayAfterRestart(t *testing.T) {
	b := dsl.New("drip")
	b.Add("wait").Delay(3600)
	b.Add("after").Buttons("Still there?")
	defs := b.Build()

	sessions := memory.NewStore()
	timers := memory.NewTimerStore()
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first, err := funnel.New(defs,
		funnel.WithSessionRepository(sessions),
		funnel.WithTimerStore(timers),
		funnel.WithClock(func() time.Time { return start }),
	)
	require.NoError(t, err)

	res, err := first.Advance(ctx, "v", "drip", domain.Start())
	require.NoError(t, err)
	assert.Equal(t, "wait", res.Session.CurrentNodeID)
	assert.Equal(t, 1, first.PendingTimers())
	first.Stop()

	out := &inbox{}
	later := start.Add(2 * time.Hour)
	second, err := funnel.New(defs,
		funnel.WithSessionRepository(sessions),
		funnel.WithTimerStore(timers),
		funnel.WithDeliverer(out),
		funnel.WithClock(func() time.Time { return later }),
	)
	require.NoError(t, err)
	require.NoError(t, second.Recover(ctx))

	s, err := sessions.FindActive(ctx, "v", "drip")
	require.NoError(t, err)
	assert.Equal(t, "after", s.CurrentNodeID)
	assert.Equal(t, []string{"Still there?"}, out.texts())

	pending, err := timers.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEngine_PaymentScenario(t *testing.T) {
	b := dsl.New("shop")
	b.Add("hello").Message("Welcome to the shop")
	b.Add("offer").Buttons("Buy the course?").Choice("Buy", "pay")
	b.Add("pay").Payment("Course", 1000, "")

	demo := payments.NewDemo()
	out := &inbox{}
	reg := prometheus.NewRegistry()
	eng, err := funnel.New(b.Build(),
		funnel.WithDeliverer(out),
		funnel.WithPaymentInitiator(demo),
		funnel.WithMetrics(reg),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Advance(ctx, "v", "shop", domain.Start())
	require.NoError(t, err)
	res, err := eng.Advance(ctx, "v", "shop", domain.ExplicitTarget("pay").At("offer"))
	require.NoError(t, err)

	prompt := res.Outcomes[0].Actions[0].Payment
	require.NotNil(t, prompt)
	event, err := demo.Confirm(prompt.PaymentID)
	require.NoError(t, err)
	confirmation, ok, err := event.Confirmation()
	require.NoError(t, err)
	require.True(t, ok)

	res, err = eng.ResumeAfterPayment(ctx, event.SessionID(), confirmation)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, res.Session.Status)
	require.NotNil(t, res.Session.PaidAmount)
	assert.Equal(t, int64(100000), *res.Session.PaidAmount)

	_, err = eng.ResumeAfterPayment(ctx, event.SessionID(), confirmation)
	assert.ErrorIs(t, err, domain.ErrSessionConflict)

	metrics := eng.Metrics()
	require.NotNil(t, metrics)
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.NodeVisits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsEnded.WithLabelValues("shop", "PAID")))
}

func TestEngine_Link(t *testing.T) {
	b := dsl.New("f")
	b.Add("a").Message("a")
	ctx := context.Background()

	eng, err := funnel.New(b.Build())
	require.NoError(t, err)
	_, err = eng.Link(ctx, "f")
	assert.ErrorContains(t, err, "no bot username")

	eng, err = funnel.New(b.Build(), funnel.WithBotUsername("bot"), funnel.WithLinkFormat("https://example.com/{bot}/{funnel}"))
	require.NoError(t, err)
	link, err := eng.Link(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/bot/f", link)

	// A landing page format needs no bot username.
	eng, err = funnel.New(b.Build(), funnel.WithLinkFormat("https://example.com/start?funnel={funnel}"))
	require.NoError(t, err)
	link, err = eng.Link(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/start?funnel=f", link)

	_, err = funnel.New(b.Build(), funnel.WithLinkFormat("https://t.me/%s?start=%s"))
	assert.ErrorContains(t, err, "{funnel}")

	_, err = eng.Link(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrFunnelNotFound)

	_, err = funnel.New(nil)
	assert.Error(t, err)
}
