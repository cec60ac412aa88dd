package domain

// TriggerKind identifies the inbound event behind a transition.
type TriggerKind string

const (
	TriggerStart          TriggerKind = "start"
	TriggerExplicitTarget TriggerKind = "target"
	TriggerContinue       TriggerKind = "continue"
	TriggerFreeText       TriggerKind = "text"
)

// Trigger is an inbound event that may move a session forward.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// NodeID is the requested target for TriggerExplicitTarget.
	NodeID string `json:"node_id,omitempty"`

	// Text is the visitor's reply for TriggerFreeText.
	Text string `json:"text,omitempty"`

	// Observed is the node the sender saw the session at. When set, the
	// trigger only applies if the session is still there.
	Observed string `json:"observed,omitempty"`
}

// Start enters (or restarts) a funnel.
func Start() Trigger { return Trigger{Kind: TriggerStart} }

// ExplicitTarget jumps to a specific node of the funnel.
func ExplicitTarget(nodeID string) Trigger {
	return Trigger{Kind: TriggerExplicitTarget, NodeID: nodeID}
}

// Continue moves to the default successor.
func Continue() Trigger { return Trigger{Kind: TriggerContinue} }

// FreeText carries a visitor reply and moves to the default successor.
func FreeText(text string) Trigger { return Trigger{Kind: TriggerFreeText, Text: text} }

// At pins the trigger to the node the sender observed.
func (t Trigger) At(nodeID string) Trigger {
	t.Observed = nodeID
	return t
}
