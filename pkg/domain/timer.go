package domain

import "time"

// Timer is a durable pending Continue for a session waiting on a delay.
// NodeID is the node the timer was armed for; the controller discards the
// timer if the session moved elsewhere in the meantime.
type Timer struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	VisitorID string    `json:"visitor_id"`
	FunnelID  string    `json:"funnel_id"`
	NodeID    string    `json:"node_id"`
	DueAt     time.Time `json:"due_at"`
}

// Due reports whether the timer should fire at now.
func (t Timer) Due(now time.Time) bool {
	return !t.DueAt.After(now)
}
