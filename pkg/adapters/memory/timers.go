package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/funnel/pkg/domain"
)

// TimerStore implements ports.TimerStore in memory. Timers do not survive
// a restart; use the sql or redis adapters for durability.
type TimerStore struct {
	mu     sync.Mutex
	timers map[string]domain.Timer
}

// NewTimerStore creates an empty TimerStore.
func NewTimerStore() *TimerStore {
	return &TimerStore{timers: make(map[string]domain.Timer)}
}

func (s *TimerStore) Put(_ context.Context, timer domain.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[timer.ID] = timer
	return nil
}

func (s *TimerStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
	return nil
}

func (s *TimerStore) Pending(_ context.Context) ([]domain.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Timer, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out, nil
}
