package domain

import "time"

// ActionKind is the outbound action set understood by channel adapters.
type ActionKind string

const (
	// ActionSendText requests the channel to display plain text.
	ActionSendText ActionKind = "SEND_TEXT"
	// ActionSendChoices requests the channel to render inline choices.
	ActionSendChoices ActionKind = "SEND_CHOICES"
	// ActionSendPaymentPrompt requests the channel to render a payment prompt.
	ActionSendPaymentPrompt ActionKind = "SEND_PAYMENT_PROMPT"
)

// Choice is one rendered option. Target is the node a tap leads to; it is
// empty only for a synthesized choice on the last node of a funnel.
type Choice struct {
	Label  string `json:"label"`
	Target string `json:"target,omitempty"`
}

// PaymentPrompt describes what the visitor is asked to pay for.
type PaymentPrompt struct {
	ProductName     string `json:"product_name"`
	Price           int64  `json:"price"`
	Currency        string `json:"currency"`
	PaymentID       string `json:"payment_id,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// Action is a render instruction for the channel adapter.
type Action struct {
	Kind ActionKind `json:"kind"`
	// NodeID is the node that produced the action.
	NodeID  string         `json:"node_id,omitempty"`
	Text    string         `json:"text,omitempty"`
	Choices []Choice       `json:"choices,omitempty"`
	Payment *PaymentPrompt `json:"payment,omitempty"`
}

// ContinuationPolicy decides what happens after a node has been rendered.
type ContinuationPolicy string

const (
	// ContinueAwaitInput halts until the visitor taps a choice or replies.
	ContinueAwaitInput ContinuationPolicy = "AWAIT_INPUT"
	// ContinueAutoAdvance moves on after Continuation.Delay.
	ContinueAutoAdvance ContinuationPolicy = "AUTO_ADVANCE"
	// ContinueAwaitPayment halts until the billing collaborator confirms payment.
	ContinueAwaitPayment ContinuationPolicy = "AWAIT_PAYMENT"
	// ContinueTerminal means the session reached a terminal status.
	ContinueTerminal ContinuationPolicy = "TERMINAL"
)

// Continuation is the next-step policy of an Outcome.
type Continuation struct {
	Policy ContinuationPolicy `json:"policy"`
	Delay  time.Duration      `json:"delay,omitempty"`
}

// AwaitInput halts for the visitor.
func AwaitInput() Continuation { return Continuation{Policy: ContinueAwaitInput} }

// AutoAdvanceAfter continues after d. A zero d advances synchronously.
func AutoAdvanceAfter(d time.Duration) Continuation {
	if d < 0 {
		d = 0
	}
	return Continuation{Policy: ContinueAutoAdvance, Delay: d}
}

// AwaitPayment halts for a payment confirmation.
func AwaitPayment() Continuation { return Continuation{Policy: ContinueAwaitPayment} }

// Outcome is what executing a node (or finishing a session) produced.
type Outcome struct {
	NodeID       string       `json:"node_id,omitempty"`
	NodeType     NodeType     `json:"node_type,omitempty"`
	Actions      []Action     `json:"actions,omitempty"`
	Continuation Continuation `json:"continuation"`
	// Status is set on terminal outcomes.
	Status SessionStatus `json:"status,omitempty"`
}

// Terminal reports whether the outcome ended the session.
func (o Outcome) Terminal() bool {
	return o.Continuation.Policy == ContinueTerminal
}

// TerminalOutcome is returned when a session runs out of nodes.
func TerminalOutcome(status SessionStatus) Outcome {
	return Outcome{
		Continuation: Continuation{Policy: ContinueTerminal},
		Status:       status,
	}
}
