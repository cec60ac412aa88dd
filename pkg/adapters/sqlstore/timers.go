package sqlstore

import (
	"context"
	"fmt"

	"github.com/aretw0/funnel/pkg/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimerStore implements ports.TimerStore.
type TimerStore struct {
	db *gorm.DB
}

// NewTimerStore wraps an opened and migrated database.
func NewTimerStore(db *gorm.DB) *TimerStore {
	return &TimerStore{db: db}
}

func (s *TimerStore) Put(ctx context.Context, timer domain.Timer) error {
	row := timerRow{
		ID:        timer.ID,
		SessionID: timer.SessionID,
		VisitorID: timer.VisitorID,
		FunnelID:  timer.FunnelID,
		NodeID:    timer.NodeID,
		DueAt:     timer.DueAt.UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("put timer: %w", err)
	}
	return nil
}

func (s *TimerStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&timerRow{}).Error; err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}
	return nil
}

func (s *TimerStore) Pending(ctx context.Context) ([]domain.Timer, error) {
	var rows []timerRow
	if err := s.db.WithContext(ctx).Order("due_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("pending timers: %w", err)
	}
	out := make([]domain.Timer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
