package ports

import (
	"context"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
)

// SessionRepository persists visitor sessions.
//
// Every write is a compare-and-swap on VisitorSession.Version: the caller
// passes the version it read (0 for a new session) and the repository returns
// domain.ErrSessionConflict if the stored version differs. On success the
// repository stores and sets session.Version to expectedVersion+1.
type SessionRepository interface {
	// FindActive returns the ACTIVE session of visitorID in funnelID.
	// Returns domain.ErrSessionNotFound if there is none.
	FindActive(ctx context.Context, visitorID, funnelID string) (*domain.VisitorSession, error)

	// Get returns a session by ID whatever its status.
	// Returns domain.ErrSessionNotFound if it does not exist.
	Get(ctx context.Context, sessionID string) (*domain.VisitorSession, error)

	// Upsert inserts (expectedVersion == 0) or updates a session.
	// Inserting an ACTIVE session while another ACTIVE one exists for the same
	// (visitor, funnel) pair is a conflict.
	Upsert(ctx context.Context, session *domain.VisitorSession, expectedVersion int64) error

	// Complete moves a session to a terminal status.
	Complete(ctx context.Context, sessionID string, status domain.SessionStatus, at time.Time, expectedVersion int64) error

	// List returns every stored session, most recently updated first.
	List(ctx context.Context) ([]domain.VisitorSession, error)
}
