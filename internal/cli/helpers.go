package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/funnel/internal/config"
	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/pkg/adapters/discord"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger from cfg.
// Logs always go to stderr so stdout stays free for the play UI and the MCP
// stdio transport.
func NewLogger(cfg config.Config) *slog.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.New(level)
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// Fanout delivers every batch to all of its deliverers.
// A Discord deliverer that does not know the visitor is skipped silently:
// the visitor came in through another channel.
type Fanout []ports.Deliverer

func (f Fanout) Deliver(ctx context.Context, visitorID, funnelID string, actions []domain.Action) error {
	var errs []error
	for _, d := range f {
		err := d.Deliver(ctx, visitorID, funnelID, actions)
		if err == nil || errors.Is(err, discord.ErrUnknownChannel) {
			continue
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
