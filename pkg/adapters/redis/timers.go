package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/funnel/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// TimerStore implements ports.TimerStore with a ZSET scored by due time and
// a hash holding the timer payloads.
type TimerStore struct {
	client *backend.Client
	prefix string
}

// NewTimerStore creates a TimerStore from an existing client.
func NewTimerStore(client *backend.Client, opts ...Option) *TimerStore {
	o := apply(opts)
	return &TimerStore{client: client, prefix: o.prefix}
}

func (s *TimerStore) dueKey() string  { return s.prefix + "timers:due" }
func (s *TimerStore) dataKey() string { return s.prefix + "timers:data" }

// Put stores or replaces a timer.
func (s *TimerStore) Put(ctx context.Context, timer domain.Timer) error {
	data, err := json.Marshal(timer)
	if err != nil {
		return fmt.Errorf("failed to marshal timer: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dataKey(), timer.ID, data)
	pipe.ZAdd(ctx, s.dueKey(), backend.Z{
		Score:  float64(timer.DueAt.UnixMilli()),
		Member: timer.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save timer: %w", err)
	}
	return nil
}

// Delete removes a timer. Unknown IDs are ignored.
func (s *TimerStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.dataKey(), id)
	pipe.ZRem(ctx, s.dueKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete timer: %w", err)
	}
	return nil
}

// Pending returns every stored timer, earliest first.
func (s *TimerStore) Pending(ctx context.Context) ([]domain.Timer, error) {
	ids, err := s.client.ZRange(ctx, s.dueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := s.client.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load timers: %w", err)
	}

	out := make([]domain.Timer, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // payload deleted between the two reads
		}
		var timer domain.Timer
		if err := json.Unmarshal([]byte(raw), &timer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timer %s: %w", ids[i], err)
		}
		out = append(out, timer)
	}
	return out, nil
}
