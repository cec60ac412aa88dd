// Package scheduler runs durable delayed continuations.
//
// Every timer is persisted in a ports.TimerStore before it is armed, so a
// restarted process can Recover: overdue timers fire immediately in DueAt
// order and future ones are re-armed. A timer whose handler fails for a
// reason other than a stale session stays persisted and is retried in
// process with exponential backoff.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
)

const (
	defaultRetryBase = 5 * time.Second
	defaultRetryMax  = 5 * time.Minute
)

// FireFunc handles a due timer. The engine binds it to the transition
// controller.
type FireFunc func(ctx context.Context, timer domain.Timer) error

// Scheduler arms timers in process and keeps them in a TimerStore.
type Scheduler struct {
	store  ports.TimerStore
	logger *slog.Logger
	now    func() time.Time

	retryBase time.Duration
	retryMax  time.Duration

	mu       sync.Mutex
	fire     FireFunc
	base     context.Context
	armed    map[string]*time.Timer
	attempts map[string]int
	stopped  bool
	wg       sync.WaitGroup
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithLogger configures a logger for the Scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithRetryBackoff sets the first retry delay after a failed fire and the cap
// the doubling delay never exceeds.
func WithRetryBackoff(base, ceiling time.Duration) Option {
	return func(s *Scheduler) {
		s.retryBase = base
		s.retryMax = ceiling
	}
}

// New creates a Scheduler backed by store. Call Bind before any timer is due.
func New(store ports.TimerStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		logger:    logging.NewNop(),
		now:       time.Now,
		retryBase: defaultRetryBase,
		retryMax:  defaultRetryMax,
		base:      context.Background(),
		armed:     make(map[string]*time.Timer),
		attempts:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind sets the handler invoked for due timers.
func (s *Scheduler) Bind(fire FireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire = fire
}

// Schedule persists timer and arms it.
func (s *Scheduler) Schedule(ctx context.Context, timer domain.Timer) error {
	if err := s.store.Put(ctx, timer); err != nil {
		return err
	}
	s.arm(timer)
	return nil
}

// Recover loads every pending timer. Overdue timers fire sequentially before
// Recover returns; the rest are armed.
func (s *Scheduler) Recover(ctx context.Context) error {
	pending, err := s.store.Pending(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	var overdue, armed int
	for _, timer := range pending {
		if timer.Due(now) {
			overdue++
			s.execute(ctx, timer)
			continue
		}
		armed++
		s.arm(timer)
	}
	s.logger.Info("timers recovered", "overdue", overdue, "armed", armed)
	return nil
}

// Run recovers pending timers and blocks until ctx is done. Timers that fire
// while running use ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	if err := s.Recover(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop disarms every timer and waits for running callbacks. Persisted timers
// are kept for the next Recover.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.armed {
		t.Stop()
		delete(s.armed, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Armed reports how many timers are waiting in process.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

func (s *Scheduler) arm(timer domain.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if prev, ok := s.armed[timer.ID]; ok {
		prev.Stop()
	}
	d := timer.DueAt.Sub(s.now())
	if d < 0 {
		d = 0
	}
	s.armed[timer.ID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.armed, timer.ID)
		s.wg.Add(1)
		ctx := s.base
		s.mu.Unlock()

		defer s.wg.Done()
		s.execute(ctx, timer)
	})
}

// execute fires timer and removes it from the store unless the failure is
// worth retrying, in which case it is re-armed after a backoff.
func (s *Scheduler) execute(ctx context.Context, timer domain.Timer) {
	log := s.logger.With("timer_id", timer.ID, "session_id", timer.SessionID, "node_id", timer.NodeID)

	s.mu.Lock()
	fire := s.fire
	s.mu.Unlock()
	if fire == nil {
		log.Warn("timer due but no handler bound")
		return
	}

	err := fire(ctx, timer)
	switch {
	case err == nil:
		log.Debug("timer fired")
	case domain.IsStale(err):
		log.Debug("stale timer discarded", "err", err)
	case domain.IsVisitorFacing(err):
		log.Warn("timer fired on a broken funnel", "err", err)
	default:
		delay := s.backoff(timer.ID)
		log.Error("timer failed, retrying", "err", err, "retry_in", delay)
		retry := timer
		retry.DueAt = s.now().Add(delay)
		s.arm(retry)
		return
	}

	s.mu.Lock()
	delete(s.attempts, timer.ID)
	s.mu.Unlock()

	if err := s.store.Delete(context.WithoutCancel(ctx), timer.ID); err != nil {
		log.Error("failed to delete timer", "err", err)
	}
}

// backoff counts a failed attempt for id and returns the delay before the
// next one.
func (s *Scheduler) backoff(id string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id]++
	d := s.retryBase
	for i := 1; i < s.attempts[id] && d < s.retryMax; i++ {
		d *= 2
	}
	return min(d, s.retryMax)
}
