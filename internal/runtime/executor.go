package runtime

import (
	"fmt"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
)

// Policy carries the engine-level knobs the executor needs.
type Policy struct {
	// MessagePacing is the grace period after a MESSAGE node before the
	// funnel moves on. Zero advances synchronously.
	MessagePacing time.Duration
}

// Execute renders node for session and decides its continuation policy.
// It performs no I/O: delivery, payment initiation and scheduling belong to
// the Controller.
func Execute(def *domain.FunnelDefinition, node *domain.Node, session *domain.VisitorSession, policy Policy) domain.Outcome {
	out := domain.Outcome{
		NodeID:   node.ID,
		NodeType: node.Type,
	}

	switch node.Type {
	case domain.NodeMessage:
		out.Actions = []domain.Action{renderMessage(node)}
		out.Continuation = domain.AutoAdvanceAfter(policy.MessagePacing)

	case domain.NodeButton:
		out.Actions = []domain.Action{renderButtons(def, node)}
		out.Continuation = domain.AwaitInput()

	case domain.NodeDelay:
		seconds := domain.DefaultDelaySeconds
		if node.Delay != nil && node.Delay.Seconds > 0 {
			seconds = node.Delay.Seconds
		}
		out.Actions = []domain.Action{{
			Kind:   domain.ActionSendText,
			NodeID: node.ID,
			Text:   waitingNotice(seconds),
		}}
		out.Continuation = domain.AutoAdvanceAfter(time.Duration(seconds) * time.Second)

	case domain.NodePayment:
		out.Actions = []domain.Action{renderPayment(node)}
		out.Continuation = domain.AwaitPayment()

	case domain.NodeCondition:
		out.Continuation = domain.AutoAdvanceAfter(0)

	default:
		// Fail open: an unrecognized type must never stall a session.
		out.Actions = []domain.Action{{
			Kind:   domain.ActionSendText,
			NodeID: node.ID,
			Text:   fmt.Sprintf("Unknown node type: %s", node.Type),
		}}
		out.Continuation = domain.AutoAdvanceAfter(0)
	}

	return out
}

func renderMessage(node *domain.Node) domain.Action {
	text := domain.DefaultMessageText
	if node.Message != nil && node.Message.Text != "" {
		text = node.Message.Text
	}
	return domain.Action{Kind: domain.ActionSendText, NodeID: node.ID, Text: text}
}

func renderButtons(def *domain.FunnelDefinition, node *domain.Node) domain.Action {
	prompt := domain.DefaultButtonPrompt
	var buttons []domain.ButtonChoice
	if node.Button != nil {
		if node.Button.Text != "" {
			prompt = node.Button.Text
		}
		buttons = node.Button.Buttons
	}

	var fallback string
	if succ, ok := def.Successor(node.ID); ok {
		fallback = succ.ID
	}

	choices := make([]domain.Choice, 0, len(buttons))
	for _, b := range buttons {
		target := b.Target
		if target == "" {
			target = fallback
		}
		choices = append(choices, domain.Choice{Label: b.Label, Target: target})
	}
	if len(choices) == 0 {
		choices = append(choices, domain.Choice{Label: domain.DefaultContinueLabel, Target: fallback})
	}

	return domain.Action{
		Kind:    domain.ActionSendChoices,
		NodeID:  node.ID,
		Text:    prompt,
		Choices: choices,
	}
}

func renderPayment(node *domain.Node) domain.Action {
	prompt := &domain.PaymentPrompt{Currency: domain.DefaultCurrency}
	if node.Payment != nil {
		prompt.ProductName = node.Payment.ProductName
		prompt.Price = node.Payment.Price
		if node.Payment.Currency != "" {
			prompt.Currency = node.Payment.Currency
		}
	}
	return domain.Action{
		Kind:    domain.ActionSendPaymentPrompt,
		NodeID:  node.ID,
		Text:    fmt.Sprintf("Payment: %s\nPrice: %d %s", prompt.ProductName, prompt.Price, prompt.Currency),
		Payment: prompt,
	}
}

func waitingNotice(seconds int) string {
	if seconds == 1 {
		return "Please wait a second..."
	}
	return fmt.Sprintf("Please wait %d seconds...", seconds)
}
