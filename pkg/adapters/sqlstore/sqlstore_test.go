package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/funnel/pkg/adapters/sqlstore"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
	"github.com/aretw0/funnel/pkg/ports"
	contract "github.com/aretw0/funnel/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlstore.Open("sqlite", filepath.Join(t.TempDir(), "nested", "funnel.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlstore.Close(db) })
	return db
}

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionRepositoryContract(t, sqlstore.NewSessionStore(openTestDB(t)))
}

func TestTimerStore_Contract(t *testing.T) {
	ports.RunTimerStoreContract(t, sqlstore.NewTimerStore(openTestDB(t)))
}

func TestDefinitionStore_Contract(t *testing.T) {
	b := dsl.New("sales").Name("Sales")
	b.Add("hello").Message("Welcome")
	b.Add("offer").Buttons("Buy?").Choice("Yes", "pay").Choice("No", "")
	b.Add("wait").Delay(15)
	b.Add("pay").Payment("Course", 990, "RUB")
	want := b.Definition()

	store := sqlstore.NewDefinitionStore(openTestDB(t))
	require.NoError(t, store.Import(context.Background(), want))

	contract.DefinitionStoreContractTest(t, store, want)

	got, err := store.GetFunnel(context.Background(), "sales")
	require.NoError(t, err)
	assert.Equal(t, want, *got, "content survives the JSON column")
}

func TestDefinitionStore_ImportReplacesNodes(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.NewDefinitionStore(openTestDB(t))

	b := dsl.New("f")
	b.Add("a").Message("A")
	b.Add("b").Message("B")
	require.NoError(t, store.Import(ctx, b.Definition()))

	short := dsl.New("f").Status(domain.FunnelArchived)
	short.Add("only").Delay(1)
	require.NoError(t, store.Import(ctx, short.Definition()))

	got, err := store.GetFunnel(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, domain.FunnelArchived, got.Status)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "only", got.Nodes[0].ID)
}

func TestSessionStore_ActiveKeyReleasedOnComplete(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.NewSessionStore(openTestDB(t))
	now := time.Now().UTC()

	first := domain.NewSession("s1", "v", "f", "n0", now)
	require.NoError(t, store.Upsert(ctx, first, 0))
	require.NoError(t, store.Complete(ctx, "s1", domain.SessionPaid, now, first.Version))

	second := domain.NewSession("s2", "v", "f", "n0", now)
	require.NoError(t, store.Upsert(ctx, second, 0))

	active, err := store.FindActive(ctx, "v", "f")
	require.NoError(t, err)
	assert.Equal(t, "s2", active.ID)

	done, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, done.Status)
	assert.Equal(t, int64(2), done.Version)
}

func TestSessionStore_KeepsDomainTimestamps(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.NewSessionStore(openTestDB(t))
	started := time.Date(2020, 1, 2, 10, 0, 0, 0, time.UTC)

	s := domain.NewSession("s1", "v", "f", "n0", started)
	require.NoError(t, store.Upsert(ctx, s, 0))

	moved := s.Clone()
	moved.CurrentNodeID = "n1"
	moved.UpdatedAt = started.Add(time.Hour)
	require.NoError(t, store.Upsert(ctx, moved, s.Version))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(moved.UpdatedAt), "updated_at = %s", got.UpdatedAt)
	assert.True(t, got.StartedAt.Equal(started))

	ended := started.Add(2 * time.Hour)
	require.NoError(t, store.Complete(ctx, "s1", domain.SessionCompleted, ended, moved.Version))
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(ended), "updated_at = %s", got.UpdatedAt)
}

func TestOpenGorm_Errors(t *testing.T) {
	_, err := sqlstore.OpenGorm("postgres", "")
	assert.ErrorContains(t, err, "dsn is required")

	_, err = sqlstore.OpenGorm("oracle", "x")
	assert.ErrorContains(t, err, "unsupported driver")
}
