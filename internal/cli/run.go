package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/funnel"
	"github.com/aretw0/funnel/internal/config"
	"github.com/aretw0/funnel/internal/presentation/tui"
	"github.com/aretw0/funnel/pkg/adapters/console"
	"github.com/aretw0/funnel/pkg/payments"
)

// PlayOptions configures an interactive terminal session.
type PlayOptions struct {
	FunnelID  string
	VisitorID string
	// Plain disables markdown rendering.
	Plain bool
	Quiet bool
}

// RunPlay walks a funnel in the terminal, reading replies from in.
// The scheduler runs alongside so DELAY nodes and message pacing fire.
func RunPlay(ctx context.Context, cfg config.Config, opts PlayOptions, in io.Reader, out io.Writer, logger *slog.Logger) error {
	if !opts.Quiet {
		tui.PrintBanner(out)
	}

	st, err := OpenStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	consoleOpts := []console.Option{}
	if opts.Plain {
		consoleOpts = append(consoleOpts, console.WithRenderer(tui.Plain))
	}
	term := console.New(out, consoleOpts...)

	engine, err := NewEngine(cfg, st, logger,
		funnel.WithDeliverer(term),
		funnel.WithPaymentInitiator(payments.NewDemo(payments.WithBaseURL(cfg.Payments.BaseURL))),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := engine.Run(ctx); err != nil {
			logger.Error("Scheduler stopped", "err", err)
		}
	}()

	if !opts.Quiet {
		printSystemMessage(out, "Playing '%s' as visitor '%s'. Type /quit to leave.", opts.FunnelID, opts.VisitorID)
	}
	if err := term.Play(ctx, engine, in, opts.VisitorID, opts.FunnelID); err != nil {
		return fmt.Errorf("play %s: %w", opts.FunnelID, err)
	}
	return nil
}
