package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/funnel/pkg/adapters/file"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSessionRepositoryContract(t, file.New(t.TempDir()))
}

func TestFileStore_AtomicLayout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	s := domain.NewSession("s1", "alice", "f1", "n0", time.Now())
	require.NoError(t, store.Upsert(ctx, s, 0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "s1.json", entries[0].Name())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644))
	_, err = store.Get(ctx, "bad")
	assert.Error(t, err)
}

func TestFileStore_MissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "not", "yet"))
	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
