package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
)

// Store implements ports.SessionRepository using the local filesystem.
// It stores sessions as JSON files in a configured directory. Version checks
// are serialized in process, so a directory must not be shared by several
// running engines.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".funnel/sessions".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".funnel", "sessions")
	}
	return &Store{BasePath: basePath}
}

// FindActive scans the directory for the ACTIVE session of the pair.
func (s *Store) FindActive(ctx context.Context, visitorID, funnelID string) (*domain.VisitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(visitorID, funnelID)
}

// Get returns a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.VisitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// Upsert writes session if the stored version equals expectedVersion.
func (s *Store) Upsert(ctx context.Context, session *domain.VisitorSession, expectedVersion int64) error {
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load(session.ID)
	switch {
	case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
		return err
	case expectedVersion == 0 && stored != nil:
		return fmt.Errorf("session %s already exists: %w", session.ID, domain.ErrSessionConflict)
	case expectedVersion == 0 && session.Status == domain.SessionActive:
		if other, err := s.findActive(session.VisitorID, session.FunnelID); err == nil && other.ID != session.ID {
			return fmt.Errorf("visitor already has an active session: %w", domain.ErrSessionConflict)
		}
	case expectedVersion != 0 && (stored == nil || stored.Version != expectedVersion):
		return fmt.Errorf("session %s version %d: %w", session.ID, expectedVersion, domain.ErrSessionConflict)
	}

	next := session.Clone()
	next.Version = expectedVersion + 1
	if err := s.save(next); err != nil {
		return err
	}
	session.Version = next.Version
	return nil
}

// Complete moves a session to a terminal status.
func (s *Store) Complete(ctx context.Context, id string, status domain.SessionStatus, at time.Time, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load(id)
	if err != nil {
		return err
	}
	if stored.Version != expectedVersion || stored.Status != domain.SessionActive {
		return fmt.Errorf("session %s version %d: %w", id, expectedVersion, domain.ErrSessionConflict)
	}
	stored.Status = status
	stored.CompletedAt = &at
	stored.UpdatedAt = at
	stored.Version++
	return s.save(stored)
}

// List returns every session ordered by start time.
func (s *Store) List(ctx context.Context) ([]domain.VisitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.all()
	if err != nil {
		return nil, err
	}
	out := make([]domain.VisitorSession, 0, len(all))
	for _, sess := range all {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (s *Store) findActive(visitorID, funnelID string) (*domain.VisitorSession, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, sess := range all {
		if sess.VisitorID == visitorID && sess.FunnelID == funnelID && sess.Status == domain.SessionActive {
			return sess, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (s *Store) all() ([]*domain.VisitorSession, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []*domain.VisitorSession
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		sess, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) load(id string) (*domain.VisitorSession, error) {
	data, err := os.ReadFile(filepath.Join(s.BasePath, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess domain.VisitorSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// save writes the session atomically: temp file, fsync, rename.
func (s *Store) save(sess *domain.VisitorSession) error {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}
	destPath := filepath.Join(s.BasePath, sess.ID+".json")

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+sess.ID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing session file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to valid session: %w", err)
	}
	return nil
}
