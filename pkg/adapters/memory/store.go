package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
)

// Store implements ports.SessionRepository in memory.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	data   map[string]*domain.VisitorSession
	active map[string]string // visitor|funnel -> session ID
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data:   make(map[string]*domain.VisitorSession),
		active: make(map[string]string),
	}
}

// FindActive returns the ACTIVE session of visitorID in funnelID.
func (s *Store) FindActive(_ context.Context, visitorID, funnelID string) (*domain.VisitorSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.active[domain.SessionKey(visitorID, funnelID)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.data[id].Clone(), nil
}

// Get returns a session by ID.
func (s *Store) Get(_ context.Context, id string) (*domain.VisitorSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Upsert writes session if the stored version equals expectedVersion.
func (s *Store) Upsert(_ context.Context, session *domain.VisitorSession, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SessionKey(session.VisitorID, session.FunnelID)
	stored, exists := s.data[session.ID]

	if expectedVersion == 0 {
		if exists {
			return fmt.Errorf("session %s already exists: %w", session.ID, domain.ErrSessionConflict)
		}
		if _, busy := s.active[key]; busy && session.Status == domain.SessionActive {
			return fmt.Errorf("visitor already has an active session: %w", domain.ErrSessionConflict)
		}
	} else if !exists || stored.Version != expectedVersion {
		return fmt.Errorf("session %s version %d: %w", session.ID, expectedVersion, domain.ErrSessionConflict)
	}

	session.Version = expectedVersion + 1
	s.data[session.ID] = session.Clone()
	s.index(session)
	return nil
}

// Complete moves a session to a terminal status.
func (s *Store) Complete(_ context.Context, id string, status domain.SessionStatus, at time.Time, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.data[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if stored.Version != expectedVersion || stored.Status != domain.SessionActive {
		return fmt.Errorf("session %s version %d: %w", id, expectedVersion, domain.ErrSessionConflict)
	}

	done := stored.Clone()
	done.Status = status
	done.CompletedAt = &at
	done.UpdatedAt = at
	done.Version++
	s.data[id] = done
	s.index(done)
	return nil
}

// List returns every session ordered by start time.
func (s *Store) List(_ context.Context) ([]domain.VisitorSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.VisitorSession, 0, len(s.data))
	for _, sess := range s.data {
		out = append(out, *sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// index keeps the active lookup in sync. Caller holds mu.
func (s *Store) index(sess *domain.VisitorSession) {
	key := domain.SessionKey(sess.VisitorID, sess.FunnelID)
	if sess.Status == domain.SessionActive {
		s.active[key] = sess.ID
		return
	}
	if s.active[key] == sess.ID {
		delete(s.active, key)
	}
}
