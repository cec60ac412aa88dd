package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.SessionRepository
	logger *slog.Logger
}

// NewLogging logs repository writes at debug level. Failures other than
// conflicts and missing sessions are logged as warnings.
func NewLogging(logger *slog.Logger) Middleware {
	return func(next ports.SessionRepository) ports.SessionRepository {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(ctx context.Context, msg string, err error, attrs ...any) {
	result := outcome(err)
	attrs = append(attrs, "outcome", result)
	if result == "error" {
		m.logger.WarnContext(ctx, msg, append(attrs, "err", err)...)
		return
	}
	m.logger.DebugContext(ctx, msg, attrs...)
}

func (m *loggingMiddleware) FindActive(ctx context.Context, visitorID, funnelID string) (*domain.VisitorSession, error) {
	s, err := m.next.FindActive(ctx, visitorID, funnelID)
	if outcome(err) == "error" {
		m.log(ctx, "Find active session", err, "visitor_id", visitorID, "funnel_id", funnelID)
	}
	return s, err
}

func (m *loggingMiddleware) Get(ctx context.Context, sessionID string) (*domain.VisitorSession, error) {
	s, err := m.next.Get(ctx, sessionID)
	if outcome(err) == "error" {
		m.log(ctx, "Get session", err, "session_id", sessionID)
	}
	return s, err
}

func (m *loggingMiddleware) Upsert(ctx context.Context, session *domain.VisitorSession, expectedVersion int64) error {
	err := m.next.Upsert(ctx, session, expectedVersion)
	m.log(ctx, "Session saved", err,
		"session_id", session.ID,
		"node", session.CurrentNodeID,
		"expected_version", expectedVersion,
	)
	return err
}

func (m *loggingMiddleware) Complete(ctx context.Context, sessionID string, status domain.SessionStatus, at time.Time, expectedVersion int64) error {
	err := m.next.Complete(ctx, sessionID, status, at, expectedVersion)
	m.log(ctx, "Session completed", err,
		"session_id", sessionID,
		"status", status,
		"expected_version", expectedVersion,
	)
	return err
}

func (m *loggingMiddleware) List(ctx context.Context) ([]domain.VisitorSession, error) {
	return m.next.List(ctx)
}
