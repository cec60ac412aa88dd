package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/funnel/pkg/domain"
)

// Provider event names.
const (
	EventPaymentSucceeded         = "payment.succeeded"
	EventPaymentCanceled          = "payment.canceled"
	EventPaymentWaitingForCapture = "payment.waiting_for_capture"
	EventRefundSucceeded          = "refund.succeeded"
)

// MetadataSessionID is the metadata key carrying the funnel session.
const MetadataSessionID = "session_id"

// Event is the webhook notification body.
type Event struct {
	Type   string `json:"type,omitempty"`
	Event  string `json:"event"`
	Object Object `json:"object"`
}

// Object is the payment the event is about.
type Object struct {
	ID            string            `json:"id"`
	Status        string            `json:"status,omitempty"`
	Amount        Amount            `json:"amount"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	PaymentMethod *PaymentMethod    `json:"payment_method,omitempty"`
}

// Amount is a decimal string in major units, e.g. "990.00".
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type PaymentMethod struct {
	Type string `json:"type"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(r io.Reader) (Event, error) {
	var e Event
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return Event{}, fmt.Errorf("decode payment event: %w", err)
	}
	if e.Object.ID == "" {
		return Event{}, fmt.Errorf("payment event without object id")
	}
	return e, nil
}

// Status maps the event name to the payment status it implies.
func (e Event) Status() string {
	switch e.Event {
	case EventPaymentSucceeded:
		return "SUCCEEDED"
	case EventPaymentCanceled:
		return "CANCELLED"
	case EventPaymentWaitingForCapture:
		return "WAITING_FOR_CAPTURE"
	case EventRefundSucceeded:
		return "REFUNDED"
	}
	return "PENDING"
}

// SessionID returns the funnel session carried in metadata.
func (e Event) SessionID() string {
	return e.Object.Metadata[MetadataSessionID]
}

// Confirmation returns the confirmation to resume a funnel with. ok is false
// for every event except payment.succeeded.
func (e Event) Confirmation() (domain.PaymentConfirmation, bool, error) {
	if e.Event != EventPaymentSucceeded {
		return domain.PaymentConfirmation{}, false, nil
	}
	amount, err := ParseAmount(e.Object.Amount.Value)
	if err != nil {
		return domain.PaymentConfirmation{}, false, err
	}
	return domain.PaymentConfirmation{ID: e.Object.ID, Amount: amount}, true, nil
}

// ParseAmount converts "990.00" into minor units (99000).
func ParseAmount(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	whole, frac, _ := strings.Cut(v, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q", v)
	}
	frac = (frac + "00")[:2]

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("invalid amount %q", v)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", v)
	}
	return w*100 + f, nil
}

// FormatAmount is the inverse of ParseAmount.
func FormatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
