package ports

import (
	"context"

	"github.com/aretw0/funnel/pkg/domain"
)

// Deliverer is the outbound side of a channel adapter.
// The engine calls it after the session mutation is committed; a failure is
// logged and never rolls the mutation back.
type Deliverer interface {
	Deliver(ctx context.Context, visitorID, funnelID string, actions []domain.Action) error
}

// DelivererFunc adapts a plain function to Deliverer.
type DelivererFunc func(ctx context.Context, visitorID, funnelID string, actions []domain.Action) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, visitorID, funnelID string, actions []domain.Action) error {
	return f(ctx, visitorID, funnelID, actions)
}

// PaymentInitiator opens a payment with an external provider.
type PaymentInitiator interface {
	Initiate(ctx context.Context, req domain.PaymentRequest) (domain.PaymentIntent, error)
}
