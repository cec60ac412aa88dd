package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/funnel"
	"github.com/aretw0/funnel/internal/config"
	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/adapters/discord"
	httpAdapter "github.com/aretw0/funnel/pkg/adapters/http"
	"github.com/aretw0/funnel/pkg/adapters/webhook"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/payments"
	"github.com/aretw0/funnel/pkg/persistence/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions are the serve flags that are not part of the configuration file.
type ServeOptions struct {
	// Watch reloads directory definitions when they change.
	Watch bool
}

// engineHandle lets the Discord bot be built before the engine it drives,
// since the engine needs the bot's deliverer.
type engineHandle struct {
	mu     sync.RWMutex
	engine *funnel.Engine
}

func (h *engineHandle) set(e *funnel.Engine) {
	h.mu.Lock()
	h.engine = e
	h.mu.Unlock()
}

func (h *engineHandle) Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*runtime.Result, error) {
	h.mu.RLock()
	e := h.engine
	h.mu.RUnlock()
	if e == nil {
		return nil, errors.New("engine not ready")
	}
	return e.Advance(ctx, visitorID, funnelID, trigger)
}

// Serve runs the HTTP API, the delay scheduler and, when configured, the
// Discord bot until ctx is done.
func Serve(ctx context.Context, cfg config.Config, opts ServeOptions, logger *slog.Logger) error {
	st, err := OpenStack(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Closing storage failed", "err", err)
		}
	}()

	streams := httpAdapter.NewStreamManager(httpAdapter.WithStreamLogger(logger))
	deliverers := Fanout{streams}
	if cfg.Webhook.URL != "" {
		deliverers = append(deliverers, webhook.New(cfg.Webhook.URL))
	}

	handle := &engineHandle{}
	var bot *discord.Bot
	if cfg.Discord.Token != "" {
		registry := discord.NewRegistry()
		bot = discord.NewBot(cfg.Discord.Token, handle, registry, discord.WithLogger(logger))
		sess, err := bot.Session()
		if err != nil {
			return err
		}
		deliverers = append(deliverers, discord.NewDeliverer(sess, registry))
	}

	demo := payments.NewDemo(payments.WithBaseURL(cfg.Payments.BaseURL), payments.WithLogger(logger))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := NewEngine(cfg, st, logger,
		funnel.WithDeliverer(deliverers),
		funnel.WithPaymentInitiator(demo),
		funnel.WithMetrics(reg),
		funnel.WithSessionMiddleware(middleware.NewInstrumentation(reg)),
	)
	if err != nil {
		return err
	}
	handle.set(engine)

	handler := httpAdapter.NewHandler(engine,
		httpAdapter.WithStreams(streams),
		httpAdapter.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		httpAdapter.WithDemoPayments(demo),
		httpAdapter.WithLogger(logger),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel to listen for errors coming from the listener and the scheduler.
	errs := make(chan error, 3)

	go func() {
		errs <- engine.Run(ctx)
	}()

	if opts.Watch && st.Loader != nil {
		go func() {
			if err := WatchDefinitions(ctx, cfg.Definitions.Dir, st.Loader, logger); err != nil {
				logger.Warn("Definition watcher stopped", "err", err)
			}
		}()
	}

	if bot != nil {
		if err := bot.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := bot.Stop(); err != nil {
				logger.Warn("Stopping discord bot failed", "err", err)
			}
		}()
	}

	go func() {
		logger.Info("Starting Funnel Server", "addr", srv.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		if err != nil {
			cancel()
			_ = srv.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	// Give outstanding requests a deadline for completion.
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("error killing server: %w", err)
		}
	}
	engine.Stop()
	logger.Info("Funnel Server stopped gracefully")
	return nil
}
