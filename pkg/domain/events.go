package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter      EventType = "node_enter"
	EventSessionEnd     EventType = "session_end"
	EventConflict       EventType = "conflict"
	EventDeliveryFailed EventType = "delivery_failed"
	EventTimerFired     EventType = "timer_fired"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	FunnelID  string    `json:"funnel_id"`
}

// NodeEvent represents the execution of a node.
type NodeEvent struct {
	EventBase
	NodeID   string      `json:"node_id"`
	NodeType NodeType    `json:"node_type"`
	Trigger  TriggerKind `json:"trigger"`
}

// SessionEvent represents a session reaching a terminal status, or a
// dropped trigger (Err set).
type SessionEvent struct {
	EventBase
	Status SessionStatus `json:"status,omitempty"`
	Err    error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter      func(context.Context, *NodeEvent)
	OnSessionEnd     func(context.Context, *SessionEvent)
	OnConflict       func(context.Context, *SessionEvent)
	OnDeliveryFailed func(context.Context, *SessionEvent)
	OnTimerFired     func(context.Context, *SessionEvent)
}
