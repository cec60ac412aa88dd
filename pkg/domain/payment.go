package domain

// PaymentRequest asks the payment collaborator to open a payment for a session.
// Amount is in minor currency units.
type PaymentRequest struct {
	SessionID   string `json:"session_id"`
	VisitorID   string `json:"visitor_id"`
	FunnelID    string `json:"funnel_id"`
	NodeID      string `json:"node_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// PaymentIntent is the collaborator's answer: an external id and the URL the
// visitor follows to pay.
type PaymentIntent struct {
	ID              string `json:"id"`
	ConfirmationURL string `json:"confirmation_url"`
}

// MinorUnits converts a whole-unit price into minor units.
func MinorUnits(price int64) int64 {
	return price * 100
}

// PaymentConfirmation is what the billing collaborator reports once a payment
// succeeded. Amount is in minor currency units.
type PaymentConfirmation struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}
