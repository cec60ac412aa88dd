package middleware

import (
	"context"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

type instrumentMiddleware struct {
	next     ports.SessionRepository
	duration *prometheus.HistogramVec
}

// NewInstrumentation records the latency of every repository call in
// funnel_session_store_duration_seconds, labelled by operation and outcome.
func NewInstrumentation(reg prometheus.Registerer) Middleware {
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "funnel_session_store_duration_seconds",
			Help:    "Latency of session repository calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)
	if reg != nil {
		reg.MustRegister(duration)
	}
	return func(next ports.SessionRepository) ports.SessionRepository {
		return &instrumentMiddleware{next: next, duration: duration}
	}
}

func (m *instrumentMiddleware) observe(op string, start time.Time, err error) {
	m.duration.WithLabelValues(op, outcome(err)).Observe(time.Since(start).Seconds())
}

func (m *instrumentMiddleware) FindActive(ctx context.Context, visitorID, funnelID string) (*domain.VisitorSession, error) {
	start := time.Now()
	s, err := m.next.FindActive(ctx, visitorID, funnelID)
	m.observe("find_active", start, err)
	return s, err
}

func (m *instrumentMiddleware) Get(ctx context.Context, sessionID string) (*domain.VisitorSession, error) {
	start := time.Now()
	s, err := m.next.Get(ctx, sessionID)
	m.observe("get", start, err)
	return s, err
}

func (m *instrumentMiddleware) Upsert(ctx context.Context, session *domain.VisitorSession, expectedVersion int64) error {
	start := time.Now()
	err := m.next.Upsert(ctx, session, expectedVersion)
	m.observe("upsert", start, err)
	return err
}

func (m *instrumentMiddleware) Complete(ctx context.Context, sessionID string, status domain.SessionStatus, at time.Time, expectedVersion int64) error {
	start := time.Now()
	err := m.next.Complete(ctx, sessionID, status, at, expectedVersion)
	m.observe("complete", start, err)
	return err
}

func (m *instrumentMiddleware) List(ctx context.Context) ([]domain.VisitorSession, error) {
	start := time.Now()
	out, err := m.next.List(ctx)
	m.observe("list", start, err)
	return out, err
}
