package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
	contract "github.com/aretw0/funnel/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() domain.FunnelDefinition {
	return domain.FunnelDefinition{
		ID:     "welcome",
		Status: domain.FunnelActive,
		Nodes: []domain.Node{
			{ID: "pay", Type: domain.NodePayment, Position: 2},
			{ID: "hello", Type: domain.NodeMessage, Position: 0},
			{ID: "offer", Type: domain.NodeButton, Position: 1},
		},
	}
}

func TestInMemoryLoader_Contract(t *testing.T) {
	loader := memory.NewLoader(fixture())

	want := fixture()
	want.Nodes = []domain.Node{want.Nodes[1], want.Nodes[2], want.Nodes[0]}

	contract.DefinitionStoreContractTest(t, loader, want)
}

func TestInMemoryLoader_ReturnsCopies(t *testing.T) {
	loader := memory.NewLoader(fixture())
	ctx := context.Background()

	first, err := loader.GetFunnel(ctx, "welcome")
	require.NoError(t, err)
	first.Nodes[0].ID = "mutated"

	second, err := loader.GetFunnel(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "hello", second.Nodes[0].ID)
	assert.Equal(t, "welcome", second.Nodes[0].FunnelID)
}
