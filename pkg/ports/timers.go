package ports

import (
	"context"

	"github.com/aretw0/funnel/pkg/domain"
)

// TimerStore persists pending delays so they survive process restarts.
type TimerStore interface {
	// Put stores (or replaces) a timer.
	Put(ctx context.Context, timer domain.Timer) error

	// Delete removes a timer. Deleting an unknown timer is not an error.
	Delete(ctx context.Context, timerID string) error

	// Pending returns every stored timer in ascending DueAt order.
	Pending(ctx context.Context) ([]domain.Timer, error)
}
