package dsl

import "github.com/aretw0/funnel/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node domain.Node
}

// Message marks the node as a MESSAGE node with the given text.
func (n *NodeBuilder) Message(text string) *NodeBuilder {
	n.reset(domain.NodeMessage)
	n.node.Message = &domain.MessageContent{Text: text}
	return n
}

// Buttons marks the node as a BUTTON node with the given prompt.
// Use Choice to add buttons.
func (n *NodeBuilder) Buttons(prompt string) *NodeBuilder {
	n.reset(domain.NodeButton)
	n.node.Button = &domain.ButtonContent{Text: prompt}
	return n
}

// Choice adds a button. An empty target falls through to the next node.
func (n *NodeBuilder) Choice(label, target string) *NodeBuilder {
	if n.node.Button == nil {
		n.Buttons("")
	}
	n.node.Button.Buttons = append(n.node.Button.Buttons, domain.ButtonChoice{
		Label:  label,
		Target: target,
	})
	return n
}

// Delay marks the node as a DELAY node.
func (n *NodeBuilder) Delay(seconds int) *NodeBuilder {
	n.reset(domain.NodeDelay)
	n.node.Delay = &domain.DelayContent{Seconds: seconds}
	return n
}

// Payment marks the node as a PAYMENT node. Price is in whole units.
func (n *NodeBuilder) Payment(product string, price int64, currency string) *NodeBuilder {
	n.reset(domain.NodePayment)
	n.node.Payment = &domain.PaymentContent{
		ProductName: product,
		Price:       price,
		Currency:    currency,
	}
	return n
}

// Condition marks the node as a CONDITION node. The expression is stored
// but not evaluated.
func (n *NodeBuilder) Condition(expression string) *NodeBuilder {
	n.reset(domain.NodeCondition)
	n.node.Condition = &domain.ConditionContent{Expression: expression}
	return n
}

// Type sets a raw node type without content, e.g. to model legacy data.
func (n *NodeBuilder) Type(t domain.NodeType) *NodeBuilder {
	n.reset(t)
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}

func (n *NodeBuilder) reset(t domain.NodeType) {
	n.node.Type = t
	n.node.Message = nil
	n.node.Button = nil
	n.node.Delay = nil
	n.node.Payment = nil
	n.node.Condition = nil
}
