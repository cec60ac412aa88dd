package funnel

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/observability"
	"github.com/aretw0/funnel/pkg/persistence/middleware"
	"github.com/aretw0/funnel/pkg/ports"
	"github.com/aretw0/funnel/pkg/scheduler"
	"github.com/aretw0/funnel/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Link templates. {bot} is replaced by the bot username and {funnel} by the
// query-escaped funnel ID.
const (
	// TelegramLinkFormat is a Telegram deep link; the bot receives
	// "/start <funnel>" when the visitor opens it.
	TelegramLinkFormat = "https://t.me/{bot}?start={funnel}"

	// DefaultLinkFormat is used unless WithLinkFormat says otherwise. Discord
	// has no start payload in its links, so Discord deployments set a format
	// pointing at their own landing page and visitors type "!start <funnel>".
	DefaultLinkFormat = TelegramLinkFormat
)

// Result is what one engine call produced.
type Result = runtime.Result

// Engine is the high-level entry point for the funnel library.
// It wires the transition controller, the durable delay scheduler and the
// per-session critical section around the injected collaborators.
type Engine struct {
	definitions ports.DefinitionStore
	sessions    ports.SessionRepository
	sessionMW   []middleware.Middleware
	timers      ports.TimerStore
	deliverer   ports.Deliverer
	payments    ports.PaymentInitiator
	locker      ports.DistributedLocker
	lockTTL     time.Duration

	controller *runtime.Controller
	scheduler  *scheduler.Scheduler
	metrics    *observability.Metrics
	registerer prometheus.Registerer

	policy      runtime.Policy
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	now         func() time.Time
	botUsername string
	linkFormat  string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSessionRepository sets where sessions live. Defaults to memory.
func WithSessionRepository(repo ports.SessionRepository) Option {
	return func(e *Engine) { e.sessions = repo }
}

// WithSessionMiddleware decorates the session repository. The first
// middleware is the outermost.
func WithSessionMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.sessionMW = append(e.sessionMW, mws...) }
}

// WithTimerStore sets where pending delays are persisted. Defaults to memory.
func WithTimerStore(store ports.TimerStore) Option {
	return func(e *Engine) { e.timers = store }
}

// WithDeliverer sets the outbound channel.
func WithDeliverer(d ports.Deliverer) Option {
	return func(e *Engine) { e.deliverer = d }
}

// WithPaymentInitiator enables payment links on PAYMENT nodes.
func WithPaymentInitiator(p ports.PaymentInitiator) Option {
	return func(e *Engine) { e.payments = p }
}

// WithDistributedLocker serializes sessions across replicas.
func WithDistributedLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithMetrics registers the engine counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registerer = reg }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMessagePacing sets the pause after MESSAGE nodes. Zero advances
// immediately.
func WithMessagePacing(d time.Duration) Option {
	return func(e *Engine) { e.policy.MessagePacing = d }
}

// WithBotUsername fills {bot} in link formats.
func WithBotUsername(username string) Option {
	return func(e *Engine) { e.botUsername = strings.TrimPrefix(strings.TrimSpace(username), "@") }
}

// WithLinkFormat overrides DefaultLinkFormat. The format must contain
// {funnel}; {bot} is optional.
func WithLinkFormat(format string) Option {
	return func(e *Engine) { e.linkFormat = format }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New initializes a funnel Engine reading definitions from defs.
func New(defs ports.DefinitionStore, opts ...Option) (*Engine, error) {
	if defs == nil {
		return nil, fmt.Errorf("a definition store is required")
	}
	eng := &Engine{
		definitions: defs,
		linkFormat:  DefaultLinkFormat,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(eng)
	}
	if !strings.Contains(eng.linkFormat, "{funnel}") {
		return nil, fmt.Errorf("link format %q must contain {funnel}", eng.linkFormat)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.sessions == nil {
		eng.sessions = memory.NewStore()
	}
	eng.sessions = middleware.Chain(eng.sessions, eng.sessionMW...)
	if eng.timers == nil {
		eng.timers = memory.NewTimerStore()
	}

	hooks := []domain.LifecycleHooks{eng.hooks}
	if eng.registerer != nil {
		eng.metrics = observability.NewMetrics(eng.registerer)
		hooks = append(hooks, eng.metrics.Hooks())
	}

	lockOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(eng.locker), session.WithLockTTL(eng.lockTTL))
	}

	eng.scheduler = scheduler.New(eng.timers,
		scheduler.WithLogger(eng.logger),
		scheduler.WithClock(eng.now),
	)

	ctrlOpts := []runtime.Option{
		runtime.WithLocks(session.NewManager(lockOpts...)),
		runtime.WithTimerScheduler(eng.scheduler),
		runtime.WithPolicy(eng.policy),
		runtime.WithHooks(observability.Combine(hooks...)),
		runtime.WithLogger(eng.logger),
		runtime.WithClock(eng.now),
	}
	if eng.deliverer != nil {
		ctrlOpts = append(ctrlOpts, runtime.WithDeliverer(eng.deliverer))
	}
	if eng.payments != nil {
		ctrlOpts = append(ctrlOpts, runtime.WithPaymentInitiator(eng.payments))
	}
	eng.controller = runtime.NewController(eng.definitions, eng.sessions, ctrlOpts...)
	eng.scheduler.Bind(eng.controller.Fire)

	return eng, nil
}

// Advance applies an inbound trigger to the visitor's session in funnelID.
//
// Stale triggers (see domain.IsStale) come back as errors with no side
// effect and are meant to be dropped. Visitor-facing errors (see
// domain.IsVisitorFacing) have already been answered with a diagnostic.
func (e *Engine) Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*Result, error) {
	return e.controller.Advance(ctx, visitorID, funnelID, trigger)
}

// ResumeAfterPayment is the billing collaborator's hook: it records the
// confirmation and moves the session past its PAYMENT node.
func (e *Engine) ResumeAfterPayment(ctx context.Context, sessionID string, confirmation domain.PaymentConfirmation) (*Result, error) {
	return e.controller.ResumeAfterPayment(ctx, sessionID, confirmation)
}

// Abandon marks an ACTIVE session as ABANDONED.
func (e *Engine) Abandon(ctx context.Context, sessionID string) (*domain.VisitorSession, error) {
	return e.controller.Abandon(ctx, sessionID)
}

// Get returns a session snapshot.
func (e *Engine) Get(ctx context.Context, sessionID string) (*domain.VisitorSession, error) {
	return e.controller.Get(ctx, sessionID)
}

// Link returns the link that starts funnelID, built from the link format.
func (e *Engine) Link(ctx context.Context, funnelID string) (string, error) {
	if strings.Contains(e.linkFormat, "{bot}") && e.botUsername == "" {
		return "", fmt.Errorf("no bot username configured")
	}
	if _, err := e.definitions.GetFunnel(ctx, funnelID); err != nil {
		return "", err
	}
	r := strings.NewReplacer("{bot}", e.botUsername, "{funnel}", url.QueryEscape(funnelID))
	return r.Replace(e.linkFormat), nil
}

// Recover re-arms persisted timers, firing overdue ones right away.
func (e *Engine) Recover(ctx context.Context) error {
	return e.scheduler.Recover(ctx)
}

// Run recovers persisted timers and serves them until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	return e.scheduler.Run(ctx)
}

// Stop disarms in-process timers. Persisted timers survive for the next Run.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// Definitions returns the definition store the engine reads from.
func (e *Engine) Definitions() ports.DefinitionStore {
	return e.definitions
}

// Sessions returns the session repository.
func (e *Engine) Sessions() ports.SessionRepository {
	return e.sessions
}

// Metrics returns the engine counters, or nil without WithMetrics.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// PendingTimers reports how many delays are armed in this process.
func (e *Engine) PendingTimers() int {
	return e.scheduler.Armed()
}
