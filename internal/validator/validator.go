package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/funnel/pkg/domain"
)

// ValidateFunnel checks a definition for problems the engine would only
// discover at run time: broken button targets, duplicate IDs, unknown node
// types and nodes no visitor can reach. Unreachable nodes are reported but
// do not fail validation.
func ValidateFunnel(def *domain.FunnelDefinition) (warnings []string, err error) {
	var errs []string

	switch def.Status {
	case domain.FunnelDraft, domain.FunnelActive, domain.FunnelArchived:
	default:
		errs = append(errs, fmt.Sprintf("Unknown funnel status: '%s'", def.Status))
	}
	if len(def.Nodes) == 0 {
		errs = append(errs, "Funnel has no nodes")
	}

	seen := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if seen[n.ID] {
			errs = append(errs, fmt.Sprintf("Duplicate node id: '%s'", n.ID))
		}
		seen[n.ID] = true

		if !n.Type.Known() {
			errs = append(errs, fmt.Sprintf("Unknown node type '%s' on node '%s'", n.Type, n.ID))
		}
		if n.Button != nil {
			for _, b := range n.Button.Buttons {
				if b.Target == "" {
					continue
				}
				if _, ok := def.Node(b.Target); !ok {
					errs = append(errs, fmt.Sprintf("Button '%s' on node '%s' points to missing node '%s'", b.Label, n.ID, b.Target))
				}
			}
		}
		if n.Type == domain.NodePayment && (n.Payment == nil || n.Payment.Price <= 0) {
			errs = append(errs, fmt.Sprintf("Payment node '%s' has no positive price", n.ID))
		}
	}

	if len(def.Nodes) > 0 {
		visited := Reachable(def)
		for _, n := range def.Nodes {
			if !visited[n.ID] {
				warnings = append(warnings, fmt.Sprintf("Unreachable node: '%s'", n.ID))
			}
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(errs, "\n- "))
	}
	return warnings, nil
}

// Reachable crawls the funnel from its first node following the edges the
// runtime can take.
func Reachable(def *domain.FunnelDefinition) map[string]bool {
	visited := make(map[string]bool)
	first := def.First()
	if first == nil {
		return visited
	}

	queue := []string{first.ID}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]
		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		for _, next := range Edges(def, currentID) {
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// Edges lists the nodes the runtime may move to from id.
func Edges(def *domain.FunnelDefinition, id string) []string {
	n, ok := def.Node(id)
	if !ok {
		return nil
	}

	var fallback string
	if succ, ok := def.Successor(id); ok {
		fallback = succ.ID
	}

	if n.Type != domain.NodeButton {
		if fallback == "" {
			return nil
		}
		return []string{fallback}
	}

	var out []string
	if n.Button == nil || len(n.Button.Buttons) == 0 {
		if fallback != "" {
			out = append(out, fallback)
		}
		return out
	}
	// Free text on a BUTTON node also continues by ordinal.
	if fallback != "" {
		out = append(out, fallback)
	}
	for _, b := range n.Button.Buttons {
		if b.Target != "" {
			if _, ok := def.Node(b.Target); ok {
				out = append(out, b.Target)
			}
		}
	}
	return out
}
