package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/funnel/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart of a funnel.
// It applies semantic styling:
// - First node: ((Circle))
// - BUTTON: [/Parallelogram/]
// - DELAY: {{Hexagon}} with the wait annotated
// - PAYMENT: [[Subroutine]]
// - CONDITION: {Rhombus}
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(def *domain.FunnelDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i, node := range def.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case node.Type == domain.NodeButton:
			opener, closer = "[/", "/]"
		case node.Type == domain.NodeDelay:
			opener, closer = "{{", "}}"
		case node.Type == domain.NodePayment:
			opener, closer = "[[", "]]"
		case node.Type == domain.NodeCondition:
			opener, closer = "{", "}"
		}

		text := node.ID
		if node.Delay != nil {
			text = fmt.Sprintf("%s <br/> ⏱️ %ds", node.ID, node.Delay.Seconds)
		}
		if node.Payment != nil {
			text = fmt.Sprintf("%s <br/> %d %s", node.ID, node.Payment.Price, currency(node.Payment))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, text, closer))

		succ, hasSucc := def.Successor(node.ID)
		if hasSucc {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(succ.ID)))
		}

		if node.Button == nil {
			continue
		}
		for _, b := range node.Button.Buttons {
			target := b.Target
			if target == "" {
				if !hasSucc {
					continue
				}
				target = succ.ID
			}
			// Escape double quotes in label for Mermaid
			label := strings.ReplaceAll(b.Label, "\"", "'")
			arrow := fmt.Sprintf("-- \"%s\" -->", label)
			if _, ok := def.Node(target); !ok {
				arrow = fmt.Sprintf("-. \"%s\" .->", label)
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(target)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func currency(p *domain.PaymentContent) string {
	if p.Currency == "" {
		return domain.DefaultCurrency
	}
	return p.Currency
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
