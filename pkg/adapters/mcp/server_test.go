package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := dsl.New("course")
	b.Add("ask").Buttons("Ready?").Choice("Buy", "pay")
	b.Add("pay").Payment("Course", 50, "USD")
	b.Add("thanks").Message("Thanks")
	defs := b.Build()

	ctrl := runtime.NewController(defs, memory.NewStore())
	return NewServer(ctrl, defs, "test")
}

func TestAdvanceAndResume(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	resp, err := s.handleAdvance(ctx, req, map[string]interface{}{
		"visitor_id": "v1", "funnel_id": "course", "kind": "start",
	})
	require.NoError(t, err)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, domain.ContinueAwaitInput, resp.Outcomes[0].Continuation.Policy)

	resp, err = s.handleAdvance(ctx, req, map[string]interface{}{
		"visitor_id": "v1", "funnel_id": "course", "kind": "target", "node_id": "pay", "observed": "ask",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay", resp.Session.CurrentNodeID)
	sessionID := resp.Session.ID

	// Stale: the session already left "ask".
	resp, err = s.handleAdvance(ctx, req, map[string]interface{}{
		"visitor_id": "v1", "funnel_id": "course", "kind": "continue", "observed": "ask",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Dropped)

	resp, err = s.handleResume(ctx, req, map[string]interface{}{
		"session_id": sessionID, "payment_id": "p-1", "amount": float64(5000),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, resp.Session.Status)
}

func TestAdvanceErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleAdvance(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"visitor_id": "v1", "funnel_id": "course", "kind": "teleport",
	})
	assert.ErrorContains(t, err, "unknown trigger kind")

	_, err = s.handleAdvance(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"visitor_id": "v1", "funnel_id": "missing", "kind": "start",
	})
	assert.ErrorIs(t, err, domain.ErrFunnelNotFound)
	assert.ErrorContains(t, err, domain.DiagnosticFunnelUnavailable)
}

func TestListFunnels(t *testing.T) {
	s := newTestServer(t)
	defs, err := s.listFunnels(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "course", defs[0].ID)
	assert.Len(t, defs[0].Nodes, 3)
}
