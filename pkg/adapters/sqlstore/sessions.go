package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
	"gorm.io/gorm"
)

// SessionStore implements ports.SessionRepository. The at-most-one ACTIVE
// session rule is enforced by a unique index on active_key, which is NULL
// for terminal sessions.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore wraps an opened and migrated database.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) FindActive(ctx context.Context, visitorID, funnelID string) (*domain.VisitorSession, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("active_key = ?", domain.SessionKey(visitorID, funnelID)).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return row.toDomain(), nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.VisitorSession, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.toDomain(), nil
}

func (s *SessionStore) Upsert(ctx context.Context, session *domain.VisitorSession, expectedVersion int64) error {
	next := session.Clone()
	next.Version = expectedVersion + 1
	row := sessionRowFromDomain(next)

	if expectedVersion == 0 {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var n int64
			q := tx.Model(&sessionRow{}).Where("id = ?", row.ID)
			if row.ActiveKey != nil {
				q = q.Or("active_key = ?", *row.ActiveKey)
			}
			if err := q.Count(&n).Error; err != nil {
				return fmt.Errorf("check session: %w", err)
			}
			if n > 0 {
				return fmt.Errorf("session %s or an active twin exists: %w", row.ID, domain.ErrSessionConflict)
			}
			return tx.Create(&row).Error
		})
		if err != nil {
			return translate(err, "create session")
		}
		session.Version = next.Version
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&sessionRow{}).
		Where("id = ? AND version = ?", row.ID, expectedVersion).
		Select("*").
		Updates(&row)
	if res.Error != nil {
		return translate(res.Error, "update session")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s version %d: %w", row.ID, expectedVersion, domain.ErrSessionConflict)
	}
	session.Version = next.Version
	return nil
}

func (s *SessionStore) Complete(ctx context.Context, id string, status domain.SessionStatus, at time.Time, expectedVersion int64) error {
	res := s.db.WithContext(ctx).
		Model(&sessionRow{}).
		Where("id = ? AND version = ? AND status = ?", id, expectedVersion, string(domain.SessionActive)).
		Updates(map[string]any{
			"status":       string(status),
			"completed_at": at,
			"updated_at":   at,
			"active_key":   gorm.Expr("NULL"),
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("complete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("session %s version %d: %w", id, expectedVersion, domain.ErrSessionConflict)
	}
	return nil
}

func (s *SessionStore) List(ctx context.Context) ([]domain.VisitorSession, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("started_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]domain.VisitorSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, nil
}

// translate maps unique violations to conflicts.
func translate(err error, op string) error {
	if errors.Is(err, domain.ErrSessionConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, domain.ErrSessionConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
