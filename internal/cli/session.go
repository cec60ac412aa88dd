package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
)

// SessionFilter narrows ListSessions. Empty fields match everything.
type SessionFilter struct {
	FunnelID string
	Status   domain.SessionStatus
}

func (f SessionFilter) match(s domain.VisitorSession) bool {
	if f.FunnelID != "" && s.FunnelID != f.FunnelID {
		return false
	}
	return f.Status == "" || s.Status == f.Status
}

// ListSessions prints the stored sessions as a table.
func ListSessions(ctx context.Context, w io.Writer, repo ports.SessionRepository, filter SessionFilter) error {
	sessions, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVISITOR\tFUNNEL\tNODE\tSTATUS\tUPDATED")
	n := 0
	for _, s := range sessions {
		if !filter.match(s) {
			continue
		}
		n++
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.VisitorID, s.FunnelID, s.CurrentNodeID, s.Status, s.UpdatedAt.Format(time.RFC3339))
	}
	if n == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	return tw.Flush()
}

// InspectSession prints one session as indented JSON.
func InspectSession(ctx context.Context, w io.Writer, repo ports.SessionRepository, sessionID string) error {
	s, err := repo.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", sessionID, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling session: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Abandoner ends sessions on behalf of an operator.
type Abandoner interface {
	Abandon(ctx context.Context, sessionID string) (*domain.VisitorSession, error)
}

// AbandonSessions abandons each session and reports per ID. It returns an
// error if any of them failed.
func AbandonSessions(ctx context.Context, w io.Writer, engine Abandoner, ids []string) error {
	failed := 0
	for _, id := range ids {
		s, err := engine.Abandon(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "Error abandoning '%s': %v\n", id, err)
			failed++
			continue
		}
		printSystemMessage(w, "Session '%s' is %s at '%s' node.", s.ID, s.Status, s.CurrentNodeID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sessions could not be abandoned", failed, len(ids))
	}
	return nil
}
