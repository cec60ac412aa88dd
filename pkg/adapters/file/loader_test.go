package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/funnel/pkg/adapters/file"
	"github.com/aretw0/funnel/pkg/domain"
	contract "github.com/aretw0/funnel/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesYAML = `
id: sales
status: ACTIVE
nodes:
  - id: hello
    type: MESSAGE
    content:
      text: Welcome!
  - id: offer
    type: BUTTON
    content:
      text: Buy?
      buttons:
        - text: Sure
          nextNodeId: pay
  - id: pay
    type: PAYMENT
    content:
      productName: Course
      price: 990
`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestFileLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales.yaml", salesYAML)
	writeFile(t, dir, "notes.txt", "ignored")

	loader, err := file.NewLoader(dir)
	require.NoError(t, err)

	contract.DefinitionStoreContractTest(t, loader, domain.FunnelDefinition{
		ID:     "sales",
		Status: domain.FunnelActive,
		Nodes: []domain.Node{
			{ID: "hello", Type: domain.NodeMessage},
			{ID: "offer", Type: domain.NodeButton},
			{ID: "pay", Type: domain.NodePayment},
		},
	})
}

func TestFileLoader_Reload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales.yaml", salesYAML)

	loader, err := file.NewLoader(dir)
	require.NoError(t, err)

	writeFile(t, dir, "other.json", `{"id":"other","status":"DRAFT","nodes":[{"id":"a","type":"MESSAGE","content":{"text":"A"}}]}`)
	require.NoError(t, loader.Reload())

	ids, err := loader.ListFunnels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "sales"}, ids)

	src, ok := loader.Source("other")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "other.json"), src)

	// A broken file keeps the previous definitions.
	writeFile(t, dir, "broken.yaml", "id: [")
	assert.Error(t, loader.Reload())
	_, err = loader.GetFunnel(context.Background(), "other")
	assert.NoError(t, err)
}

func TestFileLoader_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", salesYAML)
	writeFile(t, dir, "b.yaml", salesYAML)

	_, err := file.NewLoader(dir)
	assert.ErrorContains(t, err, "defined twice")
}
