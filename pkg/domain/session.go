package domain

import "time"

// SessionStatus is the lifecycle status of a visitor session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionAbandoned SessionStatus = "ABANDONED"
	SessionPaid      SessionStatus = "PAID"
)

// Terminal reports whether no transition may leave this status.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAbandoned || s == SessionPaid
}

// VisitorSession is one visitor's progress through one funnel.
//
// Version is the optimistic concurrency token: every successful write bumps
// it by one and repositories reject writes that carry a stale value.
type VisitorSession struct {
	ID            string        `json:"id"`
	VisitorID     string        `json:"visitor_id"`
	FunnelID      string        `json:"funnel_id"`
	CurrentNodeID string        `json:"current_node_id"`
	Status        SessionStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	PaidAmount    *int64        `json:"paid_amount,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
	Version       int64         `json:"version"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewSession creates an ACTIVE session positioned at startNodeID.
func NewSession(id, visitorID, funnelID, startNodeID string, now time.Time) *VisitorSession {
	return &VisitorSession{
		ID:            id,
		VisitorID:     visitorID,
		FunnelID:      funnelID,
		CurrentNodeID: startNodeID,
		Status:        SessionActive,
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// Paid reports whether a payment was confirmed for this session.
func (s *VisitorSession) Paid() bool {
	return s.PaidAmount != nil
}

// FinalStatus is the terminal status the session takes when it runs out of
// nodes. A confirmed payment takes precedence over plain completion.
func (s *VisitorSession) FinalStatus() SessionStatus {
	if s.Paid() {
		return SessionPaid
	}
	return SessionCompleted
}

// Clone returns a deep copy safe for mutation.
func (s *VisitorSession) Clone() *VisitorSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.PaidAmount != nil {
		a := *s.PaidAmount
		c.PaidAmount = &a
	}
	if s.PaidAt != nil {
		t := *s.PaidAt
		c.PaidAt = &t
	}
	return &c
}

// SessionKey is the critical-section key for a (visitor, funnel) pair.
func SessionKey(visitorID, funnelID string) string {
	return visitorID + "|" + funnelID
}
