package ports

import (
	"context"

	"github.com/aretw0/funnel/pkg/domain"
)

// DefinitionStore gives the engine read-only access to funnel definitions.
// The engine never mutates what it gets back.
type DefinitionStore interface {
	// GetFunnel returns the funnel with its nodes in stable ordinal order,
	// whatever its status. Returns domain.ErrFunnelNotFound if it does not exist.
	GetFunnel(ctx context.Context, funnelID string) (*domain.FunnelDefinition, error)

	// ListFunnels returns the IDs of every known funnel, sorted.
	ListFunnels(ctx context.Context) ([]string, error)
}
