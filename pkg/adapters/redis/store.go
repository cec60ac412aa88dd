package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "funnel:"

// Store implements ports.SessionRepository using Redis.
// Writes run in WATCH/MULTI transactions so concurrent replicas get
// domain.ErrSessionConflict instead of lost updates.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures a Store or TimerStore.
type Option func(*options)

type options struct {
	prefix string
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func apply(opts []Option) options {
	o := options{prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a new Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	o := apply(opts)
	return &Store{client: client, prefix: o.prefix}
}

// Client returns the underlying client, for sharing with a TimerStore or Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(id string) string {
	return s.prefix + "session:" + id
}

func (s *Store) activeKey(visitorID, funnelID string) string {
	return s.prefix + "active:" + domain.SessionKey(visitorID, funnelID)
}

func (s *Store) indexKey() string {
	return s.prefix + "sessions"
}

// FindActive returns the ACTIVE session of visitorID in funnelID.
func (s *Store) FindActive(ctx context.Context, visitorID, funnelID string) (*domain.VisitorSession, error) {
	id, err := s.client.Get(ctx, s.activeKey(visitorID, funnelID)).Result()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.VisitorSession, error) {
	return load(ctx, s.client, s.key(id))
}

// Upsert writes session if the stored version equals expectedVersion.
func (s *Store) Upsert(ctx context.Context, session *domain.VisitorSession, expectedVersion int64) error {
	key := s.key(session.ID)
	active := s.activeKey(session.VisitorID, session.FunnelID)

	next := session.Clone()
	next.Version = expectedVersion + 1

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		stored, err := load(ctx, tx, key)
		switch {
		case expectedVersion == 0 && err == nil:
			return fmt.Errorf("session %s already exists: %w", session.ID, domain.ErrSessionConflict)
		case expectedVersion == 0 && errors.Is(err, domain.ErrSessionNotFound):
			if next.Status == domain.SessionActive {
				holder, err := tx.Get(ctx, active).Result()
				if err == nil && holder != session.ID {
					return fmt.Errorf("visitor already has an active session: %w", domain.ErrSessionConflict)
				}
				if err != nil && !errors.Is(err, backend.Nil) {
					return err
				}
			}
		case err != nil:
			if errors.Is(err, domain.ErrSessionNotFound) {
				return fmt.Errorf("session %s version %d: %w", session.ID, expectedVersion, domain.ErrSessionConflict)
			}
			return err
		case stored.Version != expectedVersion:
			return fmt.Errorf("session %s version %d: %w", session.ID, expectedVersion, domain.ErrSessionConflict)
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{
				Score:  float64(next.StartedAt.UnixMilli()),
				Member: next.ID,
			})
			if next.Status == domain.SessionActive {
				pipe.Set(ctx, active, next.ID, 0)
			} else {
				pipe.Del(ctx, active)
			}
			return nil
		})
		return err
	}, key, active)
	if err != nil {
		return translate(err)
	}

	session.Version = next.Version
	return nil
}

// Complete moves a session to a terminal status.
func (s *Store) Complete(ctx context.Context, id string, status domain.SessionStatus, at time.Time, expectedVersion int64) error {
	key := s.key(id)

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		stored, err := load(ctx, tx, key)
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
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Del(ctx, s.activeKey(stored.VisitorID, stored.FunnelID))
			return nil
		})
		return err
	}, key)
	return translate(err)
}

// List returns every session ordered by start time.
func (s *Store) List(ctx context.Context) ([]domain.VisitorSession, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]domain.VisitorSession, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue // index entry outlived the session
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func load(ctx context.Context, c backend.Cmdable, key string) (*domain.VisitorSession, error) {
	val, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var sess domain.VisitorSession
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// translate maps an aborted transaction to a conflict.
func translate(err error) error {
	if errors.Is(err, backend.TxFailedErr) {
		return fmt.Errorf("concurrent write: %w", domain.ErrSessionConflict)
	}
	return err
}
