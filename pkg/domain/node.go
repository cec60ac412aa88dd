package domain

// NodeType tags the behavior of a funnel step.
type NodeType string

const (
	// NodeMessage displays text and auto-advances after the pacing interval.
	NodeMessage NodeType = "MESSAGE"
	// NodeButton displays a prompt with choices and halts for input.
	NodeButton NodeType = "BUTTON"
	// NodeDelay waits a number of seconds before continuing.
	NodeDelay NodeType = "DELAY"
	// NodePayment displays a payment prompt and halts until payment is confirmed.
	NodePayment NodeType = "PAYMENT"
	// NodeCondition is a branching step. Branches are not evaluated; it falls through.
	NodeCondition NodeType = "CONDITION"
)

// Known reports whether t is one of the node types the engine understands.
func (t NodeType) Known() bool {
	switch t {
	case NodeMessage, NodeButton, NodeDelay, NodePayment, NodeCondition:
		return true
	}
	return false
}

// Node is one step of a funnel.
//
// Exactly one of the content fields is set and it matches Type. Nodes with an
// unknown Type carry no content and are executed as a diagnostic pass-through.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	FunnelID string   `json:"funnel_id" yaml:"funnel_id"`
	Type     NodeType `json:"type" yaml:"type"`
	Position int      `json:"position" yaml:"position"`

	Message   *MessageContent   `json:"message,omitempty" yaml:"message,omitempty"`
	Button    *ButtonContent    `json:"button,omitempty" yaml:"button,omitempty"`
	Delay     *DelayContent     `json:"delay,omitempty" yaml:"delay,omitempty"`
	Payment   *PaymentContent   `json:"payment,omitempty" yaml:"payment,omitempty"`
	Condition *ConditionContent `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// MessageContent is the payload of a MESSAGE node.
type MessageContent struct {
	Text string `json:"text" yaml:"text" mapstructure:"text"`
}

// ButtonChoice is one option of a BUTTON node. An empty Target means the
// default successor.
type ButtonChoice struct {
	Label  string `json:"text" yaml:"text" mapstructure:"text"`
	Target string `json:"next_node_id,omitempty" yaml:"next_node_id,omitempty" mapstructure:"nextNodeId"`
}

// ButtonContent is the payload of a BUTTON node.
type ButtonContent struct {
	Text    string         `json:"text" yaml:"text" mapstructure:"text"`
	Buttons []ButtonChoice `json:"buttons,omitempty" yaml:"buttons,omitempty" mapstructure:"buttons"`
}

// DelayContent is the payload of a DELAY node.
type DelayContent struct {
	Seconds int `json:"seconds" yaml:"seconds" mapstructure:"seconds"`
}

// PaymentContent is the payload of a PAYMENT node. Price is expressed in
// whole currency units, as shown to the visitor.
type PaymentContent struct {
	ProductName string `json:"product_name" yaml:"product_name" mapstructure:"productName"`
	Price       int64  `json:"price" yaml:"price" mapstructure:"price"`
	Currency    string `json:"currency,omitempty" yaml:"currency,omitempty" mapstructure:"currency"`
}

// ConditionContent is the payload of a CONDITION node.
type ConditionContent struct {
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty" mapstructure:"expression"`
}
