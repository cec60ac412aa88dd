package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
	"github.com/aretw0/funnel/pkg/session"
	"github.com/oklog/ulid/v2"
)

// TimerScheduler registers a durable continuation for a DELAY or paced node.
type TimerScheduler interface {
	Schedule(ctx context.Context, timer domain.Timer) error
}

// Result is what one external call produced: the session as it was left and
// every outcome executed, in order.
type Result struct {
	Session  *domain.VisitorSession
	Outcomes []domain.Outcome

	// DeliveryErr is the first delivery failure, if any. Transitions are
	// never rolled back because of it.
	DeliveryErr error
}

// Last returns the last outcome, or the zero Outcome when nothing executed.
func (r *Result) Last() domain.Outcome {
	if r == nil || len(r.Outcomes) == 0 {
		return domain.Outcome{}
	}
	return r.Outcomes[len(r.Outcomes)-1]
}

// Controller drives sessions through funnel definitions.
type Controller struct {
	definitions ports.DefinitionStore
	sessions    ports.SessionRepository
	locks       *session.Manager

	deliverer ports.Deliverer
	payments  ports.PaymentInitiator
	timers    TimerScheduler

	policy Policy
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithDeliverer sets the outbound channel. Without one, actions are only
// returned in the Result.
func WithDeliverer(d ports.Deliverer) Option {
	return func(c *Controller) { c.deliverer = d }
}

// WithPaymentInitiator enables confirmation URLs on payment prompts.
func WithPaymentInitiator(p ports.PaymentInitiator) Option {
	return func(c *Controller) { c.payments = p }
}

// WithTimerScheduler sets the scheduler used for delayed continuations.
func WithTimerScheduler(s TimerScheduler) Option {
	return func(c *Controller) { c.timers = s }
}

// WithLocks shares a critical section manager with other components.
func WithLocks(m *session.Manager) Option {
	return func(c *Controller) { c.locks = m }
}

// WithPolicy sets executor knobs.
func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithHooks registers lifecycle observers.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(c *Controller) { c.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock overrides time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides ULID generation for sessions and timers.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// NewController creates a Controller reading definitions from defs and
// persisting sessions in repo.
func NewController(defs ports.DefinitionStore, repo ports.SessionRepository, opts ...Option) *Controller {
	c := &Controller{
		definitions: defs,
		sessions:    repo,
		logger:      logging.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.locks == nil {
		c.locks = session.NewManager(session.WithLogger(c.logger))
	}
	return c
}

// step is one committed transition.
type step struct {
	session *domain.VisitorSession
	node    *domain.Node // nil when the session finished without executing a node
	outcome domain.Outcome
}

// Advance applies trigger to the session of visitorID in funnelID and keeps
// going while the executed nodes ask for an immediate continuation.
//
// A trigger other than Start that does not say which node it was sent from
// is pinned to the session's node when the call arrives, so overlapping
// duplicates move the session at most once.
//
// Visitor-facing errors are reported to the visitor through the deliverer and
// returned. Stale errors (see domain.IsStale) are returned without any
// side effect; callers are expected to drop them.
func (c *Controller) Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*Result, error) {
	if trigger.Kind != domain.TriggerStart && trigger.Observed == "" {
		trigger = c.pin(ctx, visitorID, funnelID, trigger)
	}
	return c.drive(ctx, visitorID, funnelID, func(ctx context.Context) (*step, error) {
		return c.transition(ctx, visitorID, funnelID, trigger)
	}, trigger.Kind)
}

// ResumeAfterPayment records a confirmed payment and moves the session past
// its PAYMENT node. Repeated confirmations for the same session are
// ErrSessionConflict.
func (c *Controller) ResumeAfterPayment(ctx context.Context, sessionID string, confirmation domain.PaymentConfirmation) (*Result, error) {
	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return c.drive(ctx, s.VisitorID, s.FunnelID, func(ctx context.Context) (*step, error) {
		return c.resume(ctx, s.VisitorID, s.FunnelID, sessionID, confirmation)
	}, domain.TriggerExplicitTarget)
}

// Abandon moves an ACTIVE session to ABANDONED. Pending timers for it become
// stale and are discarded when they fire.
func (c *Controller) Abandon(ctx context.Context, sessionID string) (*domain.VisitorSession, error) {
	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var final *domain.VisitorSession
	err = c.locks.WithLock(ctx, domain.SessionKey(s.VisitorID, s.FunnelID), func(ctx context.Context) error {
		current, err := c.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.Status != domain.SessionActive {
			return fmt.Errorf("session %s is %s: %w", sessionID, current.Status, domain.ErrSessionConflict)
		}
		at := c.now()
		if err := c.sessions.Complete(ctx, sessionID, domain.SessionAbandoned, at, current.Version); err != nil {
			return err
		}
		final = current.Clone()
		final.Status = domain.SessionAbandoned
		final.CompletedAt = &at
		final.UpdatedAt = at
		final.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("session abandoned", "session_id", sessionID, "visitor_id", s.VisitorID, "funnel_id", s.FunnelID)
	c.emitSessionEnd(ctx, final, nil)
	return final, nil
}

// Fire is the scheduler callback for a due timer.
func (c *Controller) Fire(ctx context.Context, timer domain.Timer) error {
	if c.hooks.OnTimerFired != nil {
		c.hooks.OnTimerFired(ctx, &domain.SessionEvent{
			EventBase: c.base(domain.EventTimerFired, timer.SessionID, timer.FunnelID),
		})
	}
	_, err := c.Advance(ctx, timer.VisitorID, timer.FunnelID, domain.Continue().At(timer.NodeID))
	return err
}

// pin sets trigger.Observed to the current node of the active session. Lookup
// failures leave the trigger as is; transition reports them under the lock.
func (c *Controller) pin(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) domain.Trigger {
	s, err := c.sessions.FindActive(ctx, visitorID, funnelID)
	if err != nil {
		return trigger
	}
	return trigger.At(s.CurrentNodeID)
}

// Get returns a session snapshot.
func (c *Controller) Get(ctx context.Context, sessionID string) (*domain.VisitorSession, error) {
	return c.sessions.Get(ctx, sessionID)
}

func (c *Controller) drive(ctx context.Context, visitorID, funnelID string, first func(context.Context) (*step, error), kind domain.TriggerKind) (*Result, error) {
	res := &Result{}
	next := first

	for i := 0; ; i++ {
		var st *step
		err := c.locks.WithLock(ctx, domain.SessionKey(visitorID, funnelID), func(ctx context.Context) error {
			var err error
			st, err = next(ctx)
			return err
		})
		if err != nil {
			return c.fail(ctx, res, visitorID, funnelID, i, err)
		}

		res.Session = st.session
		out := st.outcome

		if st.node != nil {
			c.emitNodeEnter(ctx, st.session, st.node, kind)
			out.Actions = c.enrichPayment(ctx, st.session, st.node, out.Actions)
		}
		res.Outcomes = append(res.Outcomes, out)

		if len(out.Actions) > 0 {
			if err := c.deliver(ctx, st.session, out.Actions); err != nil && res.DeliveryErr == nil {
				res.DeliveryErr = err
			}
		}

		if out.Terminal() {
			c.emitSessionEnd(ctx, st.session, nil)
			return res, nil
		}
		if out.Continuation.Policy != domain.ContinueAutoAdvance || out.Continuation.Delay > 0 {
			return res, nil
		}

		observed := st.node.ID
		kind = domain.TriggerContinue
		next = func(ctx context.Context) (*step, error) {
			return c.transition(ctx, visitorID, funnelID, domain.Continue().At(observed))
		}
	}
}

// fail classifies err. Stale errors after the first step end the chain
// quietly: someone else moved the session meanwhile.
func (c *Controller) fail(ctx context.Context, res *Result, visitorID, funnelID string, i int, err error) (*Result, error) {
	log := c.logger.With("visitor_id", visitorID, "funnel_id", funnelID)

	switch {
	case domain.IsStale(err):
		if c.hooks.OnConflict != nil {
			c.hooks.OnConflict(ctx, &domain.SessionEvent{
				EventBase: c.base(domain.EventConflict, sessionID(res), funnelID),
				Err:       err,
			})
		}
		log.Debug("stale trigger dropped", "err", err)
		if i > 0 {
			return res, nil
		}
		return res, err

	case domain.IsVisitorFacing(err):
		log.Warn("trigger rejected", "err", err)
		msg := domain.Diagnostic(err)
		if funnelID == "" {
			msg = domain.DiagnosticInvalidLink
		}
		c.diagnose(ctx, visitorID, funnelID, msg)
		return res, err
	}

	log.Error("transition failed", "err", err)
	return res, err
}

// transition resolves trigger against the stored session and commits the
// resulting move. It runs inside the critical section.
func (c *Controller) transition(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*step, error) {
	def, err := c.definition(ctx, funnelID)
	if err != nil {
		return nil, err
	}

	current, err := c.sessions.FindActive(ctx, visitorID, funnelID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		current = nil
	} else if err != nil {
		return nil, err
	}

	if trigger.Kind == domain.TriggerStart {
		return c.start(ctx, def, visitorID, current)
	}

	if current == nil {
		switch {
		case !def.IsActive():
			return nil, fmt.Errorf("funnel %s: %w", funnelID, domain.ErrFunnelNotActive)
		case len(def.Nodes) == 0:
			return nil, fmt.Errorf("funnel %s: %w", funnelID, domain.ErrFunnelEmpty)
		}
		return nil, domain.ErrNoActiveSession
	}
	if trigger.Observed != "" && trigger.Observed != current.CurrentNodeID {
		return nil, fmt.Errorf("observed %s, session at %s: %w", trigger.Observed, current.CurrentNodeID, domain.ErrSessionConflict)
	}

	at, ok := def.Node(current.CurrentNodeID)
	if !ok {
		return nil, fmt.Errorf("current node %s: %w", current.CurrentNodeID, domain.ErrNodeNotFound)
	}
	if at.Type == domain.NodePayment {
		return nil, domain.ErrPaymentPending
	}

	var target *domain.Node
	switch trigger.Kind {
	case domain.TriggerExplicitTarget:
		target, ok = def.Node(trigger.NodeID)
		if !ok {
			return nil, fmt.Errorf("target %s: %w", trigger.NodeID, domain.ErrNodeNotFound)
		}
	case domain.TriggerContinue, domain.TriggerFreeText:
		target, ok = def.Successor(at.ID)
		if !ok {
			return c.finish(ctx, current)
		}
	default:
		return nil, fmt.Errorf("unsupported trigger kind %q", trigger.Kind)
	}

	next := current.Clone()
	next.CurrentNodeID = target.ID
	next.UpdatedAt = c.now()
	if err := c.sessions.Upsert(ctx, next, current.Version); err != nil {
		return nil, err
	}
	return c.enter(ctx, def, next, target), nil
}

func (c *Controller) start(ctx context.Context, def *domain.FunnelDefinition, visitorID string, current *domain.VisitorSession) (*step, error) {
	if current == nil && !def.IsActive() {
		return nil, fmt.Errorf("funnel %s: %w", def.ID, domain.ErrFunnelNotActive)
	}
	first := def.First()
	if first == nil {
		return nil, fmt.Errorf("funnel %s: %w", def.ID, domain.ErrFunnelEmpty)
	}

	now := c.now()
	if current == nil {
		s := domain.NewSession(c.newID(), visitorID, def.ID, first.ID, now)
		if err := c.sessions.Upsert(ctx, s, 0); err != nil {
			return nil, err
		}
		c.logger.Info("session started", "session_id", s.ID, "visitor_id", visitorID, "funnel_id", def.ID)
		return c.enter(ctx, def, s, first), nil
	}

	next := current.Clone()
	next.CurrentNodeID = first.ID
	next.StartedAt = now
	next.UpdatedAt = now
	next.PaidAmount = nil
	next.PaidAt = nil
	next.PaymentRef = ""
	if err := c.sessions.Upsert(ctx, next, current.Version); err != nil {
		return nil, err
	}
	c.logger.Info("session restarted", "session_id", next.ID, "visitor_id", visitorID, "funnel_id", def.ID)
	return c.enter(ctx, def, next, first), nil
}

func (c *Controller) resume(ctx context.Context, visitorID, funnelID, id string, confirmation domain.PaymentConfirmation) (*step, error) {
	def, err := c.definition(ctx, funnelID)
	if err != nil {
		return nil, err
	}

	current, err := c.sessions.FindActive(ctx, visitorID, funnelID)
	if errors.Is(err, domain.ErrSessionNotFound) || (err == nil && current.ID != id) {
		return nil, fmt.Errorf("session %s is not active: %w", id, domain.ErrSessionConflict)
	} else if err != nil {
		return nil, err
	}

	at, ok := def.Node(current.CurrentNodeID)
	if !ok {
		return nil, fmt.Errorf("current node %s: %w", current.CurrentNodeID, domain.ErrNodeNotFound)
	}
	if at.Type != domain.NodePayment {
		return nil, fmt.Errorf("session %s is not awaiting payment: %w", id, domain.ErrSessionConflict)
	}

	now := c.now()
	amount := confirmation.Amount
	next := current.Clone()
	next.PaidAmount = &amount
	next.PaidAt = &now
	next.PaymentRef = confirmation.ID
	next.UpdatedAt = now

	target, ok := def.Successor(at.ID)
	if !ok {
		next.Status = domain.SessionPaid
		next.CompletedAt = &now
		if err := c.sessions.Upsert(ctx, next, current.Version); err != nil {
			return nil, err
		}
		return &step{session: next, outcome: domain.TerminalOutcome(domain.SessionPaid)}, nil
	}

	next.CurrentNodeID = target.ID
	if err := c.sessions.Upsert(ctx, next, current.Version); err != nil {
		return nil, err
	}
	c.logger.Info("payment confirmed", "session_id", id, "payment_id", confirmation.ID, "amount", amount)
	return c.enter(ctx, def, next, target), nil
}

// finish completes a session that ran out of nodes.
func (c *Controller) finish(ctx context.Context, current *domain.VisitorSession) (*step, error) {
	status := current.FinalStatus()
	at := c.now()
	if err := c.sessions.Complete(ctx, current.ID, status, at, current.Version); err != nil {
		return nil, err
	}
	done := current.Clone()
	done.Status = status
	done.CompletedAt = &at
	done.UpdatedAt = at
	done.Version++
	return &step{session: done, outcome: domain.TerminalOutcome(status)}, nil
}

// enter executes node for s and arms a timer for delayed continuations. The
// session has already been committed at node.
func (c *Controller) enter(ctx context.Context, def *domain.FunnelDefinition, s *domain.VisitorSession, node *domain.Node) *step {
	out := Execute(def, node, s, c.policy)

	if d := out.Continuation.Delay; out.Continuation.Policy == domain.ContinueAutoAdvance && d > 0 {
		c.schedule(ctx, s, node, d)
	}
	return &step{session: s, node: node, outcome: out}
}

func (c *Controller) schedule(ctx context.Context, s *domain.VisitorSession, node *domain.Node, d time.Duration) {
	log := c.logger.With("session_id", s.ID, "node_id", node.ID)
	if c.timers == nil {
		log.Warn("no timer scheduler configured, session will wait for input", "delay", d)
		return
	}
	timer := domain.Timer{
		ID:        c.newID(),
		SessionID: s.ID,
		VisitorID: s.VisitorID,
		FunnelID:  s.FunnelID,
		NodeID:    node.ID,
		DueAt:     c.now().Add(d),
	}
	if err := c.timers.Schedule(ctx, timer); err != nil {
		log.Error("failed to schedule continuation", "err", err)
		return
	}
	log.Debug("continuation scheduled", "timer_id", timer.ID, "due_at", timer.DueAt)
}

func (c *Controller) definition(ctx context.Context, funnelID string) (*domain.FunnelDefinition, error) {
	if funnelID == "" {
		return nil, domain.ErrFunnelNotFound
	}
	def, err := c.definitions.GetFunnel(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// enrichPayment asks the payment collaborator for a confirmation URL. A
// failure leaves the prompt without a link.
func (c *Controller) enrichPayment(ctx context.Context, s *domain.VisitorSession, node *domain.Node, actions []domain.Action) []domain.Action {
	if c.payments == nil {
		return actions
	}
	for i := range actions {
		a := &actions[i]
		if a.Kind != domain.ActionSendPaymentPrompt || a.Payment == nil {
			continue
		}
		intent, err := c.payments.Initiate(ctx, domain.PaymentRequest{
			SessionID:   s.ID,
			VisitorID:   s.VisitorID,
			FunnelID:    s.FunnelID,
			NodeID:      node.ID,
			Amount:      domain.MinorUnits(a.Payment.Price),
			Currency:    a.Payment.Currency,
			Description: a.Payment.ProductName,
		})
		if err != nil {
			c.logger.Error("payment initiation failed", "session_id", s.ID, "node_id", node.ID, "err", err)
			continue
		}
		prompt := *a.Payment
		prompt.PaymentID = intent.ID
		prompt.ConfirmationURL = intent.ConfirmationURL
		a.Payment = &prompt
	}
	return actions
}

func (c *Controller) deliver(ctx context.Context, s *domain.VisitorSession, actions []domain.Action) error {
	if c.deliverer == nil {
		return nil
	}
	err := c.deliverer.Deliver(ctx, s.VisitorID, s.FunnelID, actions)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	c.logger.Error("delivery failed", "session_id", s.ID, "visitor_id", s.VisitorID, "err", err)
	if c.hooks.OnDeliveryFailed != nil {
		c.hooks.OnDeliveryFailed(ctx, &domain.SessionEvent{
			EventBase: c.base(domain.EventDeliveryFailed, s.ID, s.FunnelID),
			Status:    s.Status,
			Err:       err,
		})
	}
	return err
}

func (c *Controller) diagnose(ctx context.Context, visitorID, funnelID, msg string) {
	if c.deliverer == nil || msg == "" {
		return
	}
	action := domain.Action{Kind: domain.ActionSendText, Text: msg}
	if err := c.deliverer.Deliver(ctx, visitorID, funnelID, []domain.Action{action}); err != nil {
		c.logger.Warn("diagnostic not delivered", "visitor_id", visitorID, "err", err)
	}
}

func (c *Controller) emitNodeEnter(ctx context.Context, s *domain.VisitorSession, node *domain.Node, kind domain.TriggerKind) {
	c.logger.Debug("node entered", "session_id", s.ID, "node_id", node.ID, "node_type", node.Type)
	if c.hooks.OnNodeEnter == nil {
		return
	}
	c.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: c.base(domain.EventNodeEnter, s.ID, s.FunnelID),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Trigger:   kind,
	})
}

func (c *Controller) emitSessionEnd(ctx context.Context, s *domain.VisitorSession, err error) {
	c.logger.Info("session ended", "session_id", s.ID, "status", s.Status)
	if c.hooks.OnSessionEnd == nil {
		return
	}
	c.hooks.OnSessionEnd(ctx, &domain.SessionEvent{
		EventBase: c.base(domain.EventSessionEnd, s.ID, s.FunnelID),
		Status:    s.Status,
		Err:       err,
	})
}

func (c *Controller) base(t domain.EventType, sessionID, funnelID string) domain.EventBase {
	return domain.EventBase{
		Timestamp: c.now(),
		Type:      t,
		SessionID: sessionID,
		FunnelID:  funnelID,
	}
}

func sessionID(res *Result) string {
	if res == nil || res.Session == nil {
		return ""
	}
	return res.Session.ID
}
