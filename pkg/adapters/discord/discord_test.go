package discord_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/adapters/discord"
	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channelID string
	msg       *discordgo.MessageSend
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sent{channelID, data})
	return &discordgo.Message{ChannelID: channelID, Content: data.Content}, nil
}

func (f *fakeSender) contents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, s.msg.Content)
	}
	return out
}

func (f *fakeSender) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func setup(t *testing.T) (*discord.Bot, *fakeSender, *memory.Store) {
	t.Helper()

	b := dsl.New("webinar")
	b.Add("hello").Message("Welcome!")
	b.Add("ask").Buttons("Join?").Choice("Yes", "yes").Choice("No", "no")
	b.Add("yes").Message("See you there")
	b.Add("no").Message("Maybe next time")

	sender := &fakeSender{}
	registry := discord.NewRegistry()
	store := memory.NewStore()
	ctrl := runtime.NewController(b.Build(), store,
		runtime.WithDeliverer(discord.NewDeliverer(sender, registry)),
	)
	return discord.NewBot("token", ctrl, registry), sender, store
}

func TestBot_StartAndButton(t *testing.T) {
	bot, sender, store := setup(t)
	ctx := context.Background()

	bot.OnMessage(ctx, "chan-1", "user-1", "!start webinar")

	assert.Equal(t, []string{"Welcome!", "Join?"}, sender.contents())
	last := sender.last()
	assert.Equal(t, "chan-1", last.channelID)
	// "yes" falls through to "no" by ordinal, then the funnel completes.
	require.Len(t, last.msg.Components, 1)
	row := last.msg.Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 2)
	yes := row.Components[0].(discordgo.Button)
	assert.Equal(t, "Yes", yes.Label)
	assert.Equal(t, "fn|webinar|ask|yes", yes.CustomID)

	bot.OnButton(ctx, "chan-1", "user-1", yes.CustomID)
	assert.Len(t, sender.contents(), 4)

	// The first tap moved the session past "ask": a second tap is stale.
	bot.OnButton(ctx, "chan-1", "user-1", "fn|webinar|ask|no")
	assert.Equal(t, []string{"Welcome!", "Join?", "See you there", "Maybe next time"}, sender.contents())

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.SessionCompleted, sessions[0].Status)
}

func TestBot_FreeTextUsesLastFunnel(t *testing.T) {
	bot, sender, store := setup(t)
	ctx := context.Background()

	// No funnel yet: ignored.
	bot.OnMessage(ctx, "chan-1", "user-1", "hello?")
	assert.Empty(t, sender.contents())

	bot.OnMessage(ctx, "chan-1", "user-1", "!start webinar")
	bot.OnMessage(ctx, "chan-1", "user-1", "I am not sure")

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.SessionCompleted, sessions[0].Status)
	assert.Equal(t, []string{"Welcome!", "Join?", "See you there", "Maybe next time"}, sender.contents())
}

// arrivalGate holds Advance calls once armed until two of them arrived.
type arrivalGate struct {
	discord.Engine
	armed atomic.Bool
	ready sync.WaitGroup
}

func (g *arrivalGate) Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*runtime.Result, error) {
	if g.armed.Load() {
		g.ready.Done()
		g.ready.Wait()
	}
	return g.Engine.Advance(ctx, visitorID, funnelID, trigger)
}

func TestBot_DuplicateFreeTextMovesOnce(t *testing.T) {
	b := dsl.New("survey")
	b.Add("q1").Buttons("First?")
	b.Add("q2").Buttons("Second?")
	b.Add("q3").Buttons("Third?")

	sender := &fakeSender{}
	registry := discord.NewRegistry()
	store := memory.NewStore()
	ctrl := runtime.NewController(b.Build(), store,
		runtime.WithDeliverer(discord.NewDeliverer(sender, registry)),
	)
	gate := &arrivalGate{Engine: ctrl}
	bot := discord.NewBot("token", gate, registry)
	ctx := context.Background()

	bot.OnMessage(ctx, "chan-1", "user-1", "!start survey")
	nodeID, ok := registry.Node("user-1", "survey")
	require.True(t, ok)
	assert.Equal(t, "q1", nodeID)

	gate.ready.Add(2)
	gate.armed.Store(true)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot.OnMessage(ctx, "chan-1", "user-1", "yes")
		}()
	}
	wg.Wait()

	s, err := store.FindActive(ctx, "user-1", "survey")
	require.NoError(t, err)
	assert.Equal(t, "q2", s.CurrentNodeID)
	assert.Equal(t, []string{"First?", "Second?"}, sender.contents())

	nodeID, _ = registry.Node("user-1", "survey")
	assert.Equal(t, "q2", nodeID)
}

func TestRegistry_Nodes(t *testing.T) {
	r := discord.NewRegistry()
	r.SetNode("u", "f", "a")
	r.SetNode("u", "g", "b")
	got, ok := r.Node("u", "f")
	assert.True(t, ok)
	assert.Equal(t, "a", got)

	r.SetNode("u", "f", "")
	_, ok = r.Node("u", "f")
	assert.False(t, ok)
	got, _ = r.Node("u", "g")
	assert.Equal(t, "b", got)
}

func TestBot_Diagnostics(t *testing.T) {
	bot, sender, _ := setup(t)
	ctx := context.Background()

	bot.OnMessage(ctx, "chan-1", "user-1", "!start")
	bot.OnMessage(ctx, "chan-1", "user-1", "!start nope")

	assert.Equal(t, []string{domain.DiagnosticInvalidLink, domain.DiagnosticFunnelUnavailable}, sender.contents())
}

func TestBot_IgnoresForeignComponents(t *testing.T) {
	bot, sender, _ := setup(t)
	bot.OnButton(context.Background(), "chan-1", "user-1", "other-bot:click")
	assert.Empty(t, sender.contents())
}

func TestDeliverer_Errors(t *testing.T) {
	registry := discord.NewRegistry()
	sender := &fakeSender{err: errors.New("rate limited")}
	d := discord.NewDeliverer(sender, registry)
	actions := []domain.Action{{Kind: domain.ActionSendText, Text: "hi"}}

	err := d.Deliver(context.Background(), "ghost", "f", actions)
	assert.ErrorIs(t, err, discord.ErrUnknownChannel)

	registry.Register("user-1", "chan-1")
	err = d.Deliver(context.Background(), "user-1", "f", actions)
	assert.ErrorContains(t, err, "rate limited")
}

func TestRender(t *testing.T) {
	pay := discord.Render("f", domain.Action{
		Kind: domain.ActionSendPaymentPrompt,
		Text: "Payment: Course",
		Payment: &domain.PaymentPrompt{
			ProductName:     "Course",
			ConfirmationURL: "https://pay.example/1",
		},
	})
	require.Len(t, pay.Components, 1)
	link := pay.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	assert.Equal(t, discordgo.LinkButton, link.Style)
	assert.Equal(t, "https://pay.example/1", link.URL)

	choices := make([]domain.Choice, 7)
	for i := range choices {
		choices[i] = domain.Choice{Label: "c", Target: "t"}
	}
	many := discord.Render("f", domain.Action{Kind: domain.ActionSendChoices, NodeID: "n", Choices: choices})
	require.Len(t, many.Components, 2)
	assert.Len(t, many.Components[1].(discordgo.ActionsRow).Components, 2)

	assert.Nil(t, discord.Render("f", domain.Action{Kind: domain.ActionSendText}))
}

func TestParseCustomID(t *testing.T) {
	ref, err := discord.ParseCustomID("fn|f|from|")
	require.NoError(t, err)
	assert.Equal(t, discord.ButtonRef{FunnelID: "f", From: "from"}, ref)
	assert.Equal(t, "fn|f|from|", ref.CustomID())

	for _, bad := range []string{"", "fn|f|", "xx|f|a|b", "fn||a|b"} {
		_, err := discord.ParseCustomID(bad)
		assert.Error(t, err, bad)
	}
}
