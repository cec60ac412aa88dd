// Package discord is a chat channel for funnels on Discord.
//
// "!start <funnel>" enters a funnel, buttons carry their funnel and the node
// they were rendered at, and any other message is a free-text reply to the
// node the visitor was last shown in the funnel they last entered.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/bwmarrin/discordgo"
)

const (
	startCommand   = "!start"
	triggerTimeout = 30 * time.Second
)

// Engine is the part of the funnel engine the bot drives.
type Engine interface {
	Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*runtime.Result, error)
}

// Bot listens to Discord and turns messages and button taps into triggers.
type Bot struct {
	token    string
	engine   Engine
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	session *discordgo.Session
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

func NewBot(token string, engine Engine, registry *Registry, opts ...Option) *Bot {
	b := &Bot{
		token:    token,
		engine:   engine,
		registry: registry,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Session opens the Discord session without connecting the gateway, so the
// caller can build a Deliverer on it before Start.
func (b *Bot) Session() (*discordgo.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return b.session, nil
	}
	s, err := discordgo.New(normalizeBotToken(b.token))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	s.AddHandler(b.handleMessage)
	s.AddHandler(b.handleInteraction)
	b.session = s
	return s, nil
}

func (b *Bot) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s, err := b.Session()
	if err != nil {
		return err
	}
	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	b.logger.Info("discord bot started")
	return nil
}

func (b *Bot) Stop() error {
	b.mu.Lock()
	s := b.session
	b.session = nil
	b.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	b.logger.Info("discord bot stopped")
	return nil
}

func (b *Bot) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
	defer cancel()
	b.OnMessage(ctx, m.ChannelID, m.Author.ID, m.Content)
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	// Acknowledge first; the funnel answers with new messages.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		b.logger.Warn("interaction ack failed", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
	defer cancel()
	b.OnButton(ctx, i.ChannelID, user.ID, i.MessageComponentData().CustomID)
}

// OnMessage handles a text message from visitorID in channelID.
func (b *Bot) OnMessage(ctx context.Context, channelID, visitorID, content string) {
	b.registry.Register(visitorID, channelID)
	content = strings.TrimSpace(content)

	if content == startCommand || strings.HasPrefix(content, startCommand+" ") {
		funnelID := strings.TrimSpace(strings.TrimPrefix(content, startCommand))
		b.registry.SetFunnel(visitorID, funnelID)
		b.advance(ctx, visitorID, funnelID, domain.Start())
		return
	}

	funnelID, ok := b.registry.Funnel(visitorID)
	if !ok || content == "" {
		return
	}
	trigger := domain.FreeText(content)
	if nodeID, ok := b.registry.Node(visitorID, funnelID); ok {
		trigger = trigger.At(nodeID)
	}
	b.advance(ctx, visitorID, funnelID, trigger)
}

// OnButton handles a button tap.
func (b *Bot) OnButton(ctx context.Context, channelID, visitorID, customID string) {
	ref, err := ParseCustomID(customID)
	if err != nil {
		b.logger.Debug("ignoring component", "custom_id", customID, "err", err)
		return
	}
	b.registry.Register(visitorID, channelID)
	b.registry.SetFunnel(visitorID, ref.FunnelID)

	trigger := domain.Continue()
	if ref.To != "" {
		trigger = domain.ExplicitTarget(ref.To)
	}
	b.advance(ctx, visitorID, ref.FunnelID, trigger.At(ref.From))
}

func (b *Bot) advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) {
	res, err := b.engine.Advance(ctx, visitorID, funnelID, trigger)
	switch {
	case err == nil:
		if res != nil && res.Session != nil {
			if res.Session.Status == domain.SessionActive {
				b.registry.SetNode(visitorID, funnelID, res.Session.CurrentNodeID)
			} else {
				b.registry.SetNode(visitorID, funnelID, "")
			}
		}
	case domain.IsStale(err):
		b.logger.Debug("stale trigger ignored", "visitor_id", visitorID, "funnel_id", funnelID, "err", err)
	case domain.IsVisitorFacing(err):
		// The engine already sent a diagnostic.
	default:
		b.logger.Error("trigger failed", "visitor_id", visitorID, "funnel_id", funnelID, "err", err)
	}
}

func normalizeBotToken(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bot ") {
		return token
	}
	return "Bot " + token
}
