package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/funnel/internal/presentation/graph"
	"github.com/aretw0/funnel/internal/validator"
	"github.com/aretw0/funnel/pkg/ports"
)

// Validate checks the named funnels, or every funnel when ids is empty.
// Warnings are printed and do not fail the run.
func Validate(ctx context.Context, w io.Writer, defs ports.DefinitionStore, ids []string) error {
	if len(ids) == 0 {
		all, err := defs.ListFunnels(ctx)
		if err != nil {
			return err
		}
		ids = all
	}
	if len(ids) == 0 {
		return fmt.Errorf("no funnels found")
	}

	failed := 0
	for _, id := range ids {
		def, err := defs.GetFunnel(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", id, err)
			failed++
			continue
		}
		warnings, err := validator.ValidateFunnel(def)
		for _, warn := range warnings {
			fmt.Fprintf(w, "%s: warning: %s\n", id, warn)
		}
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s: valid ✅\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d funnels are invalid", failed, len(ids))
	}
	return nil
}

// Graph writes the Mermaid diagram of funnelID. With a session ID the
// visitor's position is highlighted.
func Graph(ctx context.Context, w io.Writer, defs ports.DefinitionStore, sessions ports.SessionRepository, funnelID, sessionID string) error {
	def, err := defs.GetFunnel(ctx, funnelID)
	if err != nil {
		return err
	}

	var overlay *graph.GraphOverlay
	if sessionID != "" {
		s, err := sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.FunnelID != funnelID {
			return fmt.Errorf("session %s belongs to funnel %s", s.ID, s.FunnelID)
		}
		overlay = &graph.GraphOverlay{CurrentNode: s.CurrentNodeID}
		for _, n := range def.Nodes {
			if n.ID == s.CurrentNodeID {
				break
			}
			overlay.VisitedNodes = append(overlay.VisitedNodes, n.ID)
		}
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(def, overlay))
	return err
}
