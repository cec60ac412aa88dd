package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
)

// DefinitionStoreContractTest is a reusable test suite that verifies if an
// adapter complies with ports.DefinitionStore. The store must contain want.
func DefinitionStoreContractTest(t *testing.T, store ports.DefinitionStore, want domain.FunnelDefinition) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetFunnel_Success", func(t *testing.T) {
		got, err := store.GetFunnel(ctx, want.ID)
		if err != nil {
			t.Fatalf("unexpected error getting funnel %s: %v", want.ID, err)
		}
		if got.Status != want.Status {
			t.Errorf("status mismatch: got %q, want %q", got.Status, want.Status)
		}
		if len(got.Nodes) != len(want.Nodes) {
			t.Fatalf("node count mismatch: got %d, want %d", len(got.Nodes), len(want.Nodes))
		}
		for i := range want.Nodes {
			if got.Nodes[i].ID != want.Nodes[i].ID {
				t.Errorf("node %d: got %q, want %q (ordinal order must be stable)", i, got.Nodes[i].ID, want.Nodes[i].ID)
			}
			if got.Nodes[i].Type != want.Nodes[i].Type {
				t.Errorf("node %d type: got %q, want %q", i, got.Nodes[i].Type, want.Nodes[i].Type)
			}
		}
	})

	t.Run("GetFunnel_NotFound", func(t *testing.T) {
		_, err := store.GetFunnel(ctx, "non-existent-funnel")
		if !errors.Is(err, domain.ErrFunnelNotFound) {
			t.Errorf("expected ErrFunnelNotFound, got %v", err)
		}
	})

	t.Run("ListFunnels", func(t *testing.T) {
		ids, err := store.ListFunnels(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing funnels: %v", err)
		}
		found := false
		for _, id := range ids {
			if id == want.ID {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s in %v", want.ID, ids)
		}
	})
}
