package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/oklog/ulid/v2"
)

// DefaultDemoBaseURL is where demo confirmation links point.
const DefaultDemoBaseURL = "https://demo.yookassa.ru/pay/"

// ErrUnknownOrder is returned when a demo order was never issued.
var ErrUnknownOrder = errors.New("unknown payment order")

// Demo implements ports.PaymentInitiator without talking to a provider.
// It remembers issued orders so a confirmation can be simulated later.
type Demo struct {
	baseURL string
	now     func() time.Time
	logger  *slog.Logger

	mu     sync.Mutex
	orders map[string]domain.PaymentRequest
}

// DemoOption configures a Demo initiator.
type DemoOption func(*Demo)

// WithBaseURL overrides DefaultDemoBaseURL.
func WithBaseURL(u string) DemoOption {
	return func(d *Demo) {
		if u != "" {
			d.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DemoOption {
	return func(d *Demo) { d.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) DemoOption {
	return func(d *Demo) { d.now = now }
}

// NewDemo creates a demo initiator.
func NewDemo(opts ...DemoOption) *Demo {
	d := &Demo{
		baseURL: DefaultDemoBaseURL,
		now:     time.Now,
		logger:  logging.NewNop(),
		orders:  make(map[string]domain.PaymentRequest),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initiate issues an order id of the form order_<unix ms>_<8 chars> and a
// demo confirmation URL.
func (d *Demo) Initiate(_ context.Context, req domain.PaymentRequest) (domain.PaymentIntent, error) {
	if req.Amount <= 0 {
		return domain.PaymentIntent{}, fmt.Errorf("payment amount must be positive, got %d", req.Amount)
	}

	suffix := strings.ToLower(ulid.Make().String()[18:])
	id := fmt.Sprintf("order_%d_%s", d.now().UnixMilli(), suffix)

	d.mu.Lock()
	d.orders[id] = req
	d.mu.Unlock()

	d.logger.Info("demo payment issued", "payment_id", id, "session_id", req.SessionID, "amount", req.Amount)
	return domain.PaymentIntent{
		ID:              id,
		ConfirmationURL: fmt.Sprintf("%s%s?amount=%d", d.baseURL, id, req.Amount),
	}, nil
}

// Lookup returns the request behind an issued order.
func (d *Demo) Lookup(orderID string) (domain.PaymentRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	req, ok := d.orders[orderID]
	return req, ok
}

// Confirm builds the payment.succeeded event the provider would post for an
// issued order.
func (d *Demo) Confirm(orderID string) (Event, error) {
	req, ok := d.Lookup(orderID)
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	return Event{
		Event: EventPaymentSucceeded,
		Object: Object{
			ID:            orderID,
			Status:        "succeeded",
			Amount:        Amount{Value: FormatAmount(req.Amount), Currency: req.Currency},
			Metadata:      map[string]string{MetadataSessionID: req.SessionID},
			PaymentMethod: &PaymentMethod{Type: "demo"},
		},
	}, nil
}
