// Package console is an interactive terminal channel for funnels.
//
// The console plays a single visitor: it renders outbound actions with
// glamour and maps typed lines back to triggers. A number picks the matching
// choice, "/pay" confirms a pending payment, "/quit" leaves and anything else
// is a free-text reply.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/funnel/internal/presentation/tui"
	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/domain"
)

const (
	cmdQuit = "/quit"
	cmdPay  = "/pay"
)

// Engine is the part of the funnel engine the console drives.
type Engine interface {
	Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*runtime.Result, error)
	ResumeAfterPayment(ctx context.Context, sessionID string, confirmation domain.PaymentConfirmation) (*runtime.Result, error)
}

// Console renders actions to a terminal and remembers what the visitor can
// answer to.
type Console struct {
	out    io.Writer
	render func(string) (string, error)

	mu        sync.Mutex
	observed  string
	choices   []domain.Choice
	payment   *domain.PaymentPrompt
	sessionID string
	ended     bool
}

// Option configures a Console.
type Option func(*Console)

// WithRenderer replaces the glamour renderer.
func WithRenderer(render func(string) (string, error)) Option {
	return func(c *Console) { c.render = render }
}

func New(out io.Writer, opts ...Option) *Console {
	c := &Console{out: out}
	for _, opt := range opts {
		opt(c)
	}
	if c.render == nil {
		c.render = tui.NewRenderer()
	}
	return c
}

// Deliver implements ports.Deliverer.
func (c *Console) Deliver(_ context.Context, _, _ string, actions []domain.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range actions {
		var md strings.Builder
		switch a.Kind {
		case domain.ActionSendText:
			md.WriteString(a.Text)
		case domain.ActionSendChoices:
			md.WriteString(a.Text + "\n\n")
			for i, ch := range a.Choices {
				fmt.Fprintf(&md, "%d. %s\n", i+1, ch.Label)
			}
			c.observed = a.NodeID
			c.choices = a.Choices
			c.payment = nil
		case domain.ActionSendPaymentPrompt:
			md.WriteString(strings.ReplaceAll(a.Text, "\n", "  \n"))
			if a.Payment != nil && a.Payment.ConfirmationURL != "" {
				fmt.Fprintf(&md, "\n\n[Pay](%s)", a.Payment.ConfirmationURL)
			}
			md.WriteString("\n\nType `/pay` to confirm the payment.")
			c.observed = a.NodeID
			c.choices = nil
			c.payment = a.Payment
		default:
			continue
		}

		out, err := c.render(md.String())
		if err != nil {
			return fmt.Errorf("render action: %w", err)
		}
		if _, err := io.WriteString(c.out, out); err != nil {
			return fmt.Errorf("write action: %w", err)
		}
	}
	return nil
}

// Play starts funnelID for visitorID and feeds lines from in until the
// session ends, the input is exhausted, or the visitor types /quit.
func (c *Console) Play(ctx context.Context, engine Engine, in io.Reader, visitorID, funnelID string) error {
	if err := c.apply(engine.Advance(ctx, visitorID, funnelID, domain.Start())); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for !c.isEnded() && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == cmdQuit {
			return nil
		}

		var err error
		if line == cmdPay {
			err = c.pay(ctx, engine)
		} else {
			err = c.apply(engine.Advance(ctx, visitorID, funnelID, c.Trigger(line)))
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Trigger maps a typed line to a trigger observed at the last prompt.
func (c *Console) Trigger(line string) domain.Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(c.choices) {
		choice := c.choices[n-1]
		if choice.Target == "" {
			return domain.Continue().At(c.observed)
		}
		return domain.ExplicitTarget(choice.Target).At(c.observed)
	}
	return domain.FreeText(line)
}

func (c *Console) pay(ctx context.Context, engine Engine) error {
	c.mu.Lock()
	prompt, sessionID := c.payment, c.sessionID
	c.mu.Unlock()

	if prompt == nil {
		c.note("Nothing to pay for right now.")
		return nil
	}
	return c.apply(engine.ResumeAfterPayment(ctx, sessionID, domain.PaymentConfirmation{
		ID:     prompt.PaymentID,
		Amount: domain.MinorUnits(prompt.Price),
	}))
}

// apply records the session state of a call. Stale and visitor-facing
// errors are part of the conversation, everything else stops the console.
func (c *Console) apply(res *runtime.Result, err error) error {
	if res != nil && res.Session != nil {
		c.mu.Lock()
		c.sessionID = res.Session.ID
		c.ended = res.Session.Status.Terminal()
		c.mu.Unlock()
		if c.isEnded() {
			c.note(fmt.Sprintf("Session finished: %s", res.Session.Status))
		}
	}
	switch {
	case err == nil:
		return nil
	case domain.IsStale(err):
		c.note("That option is no longer available.")
		return nil
	case domain.IsVisitorFacing(err):
		c.mu.Lock()
		c.ended = true
		c.mu.Unlock()
		return nil
	}
	return err
}

func (c *Console) isEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func (c *Console) note(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if out, err := c.render("_" + text + "_"); err == nil {
		io.WriteString(c.out, out)
	}
}
