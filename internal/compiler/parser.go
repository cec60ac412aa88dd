package compiler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/funnel/internal/dto"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parser converts funnel documents into definitions.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// ParseYAML decodes a YAML funnel document. JSON is valid YAML, so this also
// accepts .json files.
func (p *Parser) ParseYAML(data []byte) (*domain.FunnelDefinition, error) {
	var doc dto.FunnelDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse funnel: %w", err)
	}
	return p.Compile(doc)
}

// ParseJSON decodes a JSON funnel document.
func (p *Parser) ParseJSON(data []byte) (*domain.FunnelDefinition, error) {
	var doc dto.FunnelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse funnel: %w", err)
	}
	return p.Compile(doc)
}

// Compile turns a document into a definition with nodes in ordinal order.
// Missing positions default to the document order. Unknown node types are
// kept without content; the runtime fails open on them.
func (p *Parser) Compile(doc dto.FunnelDocument) (*domain.FunnelDefinition, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("funnel missing ID")
	}

	def := &domain.FunnelDefinition{
		ID:     doc.ID,
		Name:   doc.Name,
		Status: domain.FunnelStatus(strings.ToUpper(doc.Status)),
		Nodes:  make([]domain.Node, 0, len(doc.Nodes)),
	}
	if def.Status == "" {
		def.Status = domain.FunnelDraft
	}

	for i, nd := range doc.Nodes {
		node, err := p.CompileNode(doc.ID, nd, i)
		if err != nil {
			return nil, err
		}
		def.Nodes = append(def.Nodes, node)
	}
	sort.SliceStable(def.Nodes, func(i, j int) bool {
		return def.Nodes[i].Position < def.Nodes[j].Position
	})
	return def, nil
}

// CompileNode decodes one node. ordinal is used when the document has no
// explicit position.
func (p *Parser) CompileNode(funnelID string, nd dto.NodeDocument, ordinal int) (domain.Node, error) {
	if nd.ID == "" {
		return domain.Node{}, fmt.Errorf("funnel %s: node %d missing ID", funnelID, ordinal)
	}

	node := domain.Node{
		ID:       nd.ID,
		FunnelID: funnelID,
		Type:     domain.NodeType(strings.ToUpper(nd.Type)),
		Position: ordinal,
	}
	if nd.Position != nil {
		node.Position = *nd.Position
	}

	var target any
	switch node.Type {
	case domain.NodeMessage:
		node.Message = &domain.MessageContent{}
		target = node.Message
	case domain.NodeButton:
		node.Button = &domain.ButtonContent{}
		target = node.Button
	case domain.NodeDelay:
		node.Delay = &domain.DelayContent{}
		target = node.Delay
	case domain.NodePayment:
		node.Payment = &domain.PaymentContent{}
		target = node.Payment
	case domain.NodeCondition:
		node.Condition = &domain.ConditionContent{}
		target = node.Condition
	default:
		return node, nil
	}

	if err := decode(nd.Content, target); err != nil {
		return domain.Node{}, fmt.Errorf("funnel %s: node %s content: %w", funnelID, nd.ID, err)
	}
	return node, nil
}

// Flatten is the inverse of Compile, used when a definition is written to
// a store that keeps content loosely typed.
func Flatten(def domain.FunnelDefinition) dto.FunnelDocument {
	doc := dto.FunnelDocument{
		ID:     def.ID,
		Name:   def.Name,
		Status: string(def.Status),
		Nodes:  make([]dto.NodeDocument, 0, len(def.Nodes)),
	}
	for _, n := range def.Nodes {
		pos := n.Position
		doc.Nodes = append(doc.Nodes, dto.NodeDocument{
			ID:       n.ID,
			Type:     string(n.Type),
			Position: &pos,
			Content:  FlattenContent(n),
		})
	}
	return doc
}

// FlattenContent returns the loosely typed content of a node.
func FlattenContent(n domain.Node) map[string]any {
	switch {
	case n.Message != nil:
		return map[string]any{"text": n.Message.Text}
	case n.Button != nil:
		buttons := make([]any, 0, len(n.Button.Buttons))
		for _, b := range n.Button.Buttons {
			entry := map[string]any{"text": b.Label}
			if b.Target != "" {
				entry["nextNodeId"] = b.Target
			}
			buttons = append(buttons, entry)
		}
		return map[string]any{"text": n.Button.Text, "buttons": buttons}
	case n.Delay != nil:
		return map[string]any{"seconds": n.Delay.Seconds}
	case n.Payment != nil:
		return map[string]any{
			"productName": n.Payment.ProductName,
			"price":       n.Payment.Price,
			"currency":    n.Payment.Currency,
		}
	case n.Condition != nil:
		return map[string]any{"expression": n.Condition.Expression}
	}
	return nil
}

func decode(input map[string]any, target any) error {
	if len(input) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
