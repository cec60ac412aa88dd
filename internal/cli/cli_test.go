package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/funnel/internal/config"
	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/pkg/adapters/discord"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
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

const brokenYAML = `
id: broken
status: ACTIVE
nodes:
  - id: ask
    type: BUTTON
    content:
      text: Where to?
      buttons:
        - text: Nowhere
          nextNodeId: missing
`

func testConfig(t *testing.T, files map[string]string) config.Config {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	cfg := config.Default()
	cfg.MessagePacing = 0
	cfg.Definitions.Dir = dir
	return cfg
}

func openStack(t *testing.T, cfg config.Config) *Stack {
	t.Helper()
	st, err := OpenStack(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenStack(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		st := openStack(t, testConfig(t, map[string]string{"sales.yaml": salesYAML}))
		assert.NotNil(t, st.Loader)
		assert.Nil(t, st.SQL)
		assert.Nil(t, st.Locker)

		ids, err := st.Definitions.ListFunnels(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"sales"}, ids)
	})

	t.Run("file", func(t *testing.T) {
		cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML})
		cfg.Storage.Backend = config.StorageFile
		cfg.Storage.DSN = filepath.Join(t.TempDir(), "sessions")
		st := openStack(t, cfg)
		assert.NotNil(t, st.Sessions)
	})

	t.Run("sqlite with sql definitions", func(t *testing.T) {
		cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML})
		cfg.Storage.Backend = config.StorageSQLite
		cfg.Storage.DSN = filepath.Join(t.TempDir(), "funnel.db")
		cfg.Definitions.Source = config.DefinitionsSQL
		st := openStack(t, cfg)
		require.NotNil(t, st.SQL)
		assert.Nil(t, st.Loader)

		ids, err := st.Definitions.ListFunnels(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("missing definitions directory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Definitions.Dir = filepath.Join(t.TempDir(), "absent")
		_, err := OpenStack(cfg)
		assert.Error(t, err)
	})
}

func TestImportDefinitions(t *testing.T) {
	cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML})
	cfg.Storage.Backend = config.StorageSQLite
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "funnel.db")
	st := openStack(t, cfg)
	ctx := context.Background()

	ids, err := ImportDefinitions(ctx, st.Loader, st.SQL)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, ids)

	def, err := st.SQL.GetFunnel(ctx, "sales")
	require.NoError(t, err)
	require.Len(t, def.Nodes, 3)
	assert.Equal(t, "offer", def.Nodes[1].ID)
}

func TestSessionCommands(t *testing.T) {
	cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML})
	st := openStack(t, cfg)
	engine, err := NewEngine(cfg, st, logging.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := engine.Advance(ctx, "alice", "sales", domain.Start())
	require.NoError(t, err)
	id := res.Session.ID
	assert.Equal(t, "offer", res.Session.CurrentNodeID)

	var out bytes.Buffer
	require.NoError(t, ListSessions(ctx, &out, st.Sessions, SessionFilter{FunnelID: "sales"}))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "ACTIVE")

	out.Reset()
	require.NoError(t, ListSessions(ctx, &out, st.Sessions, SessionFilter{Status: domain.SessionPaid}))
	assert.Equal(t, "No sessions found.\n", out.String())

	out.Reset()
	require.NoError(t, InspectSession(ctx, &out, st.Sessions, id))
	assert.Contains(t, out.String(), `"current_node_id": "offer"`)

	out.Reset()
	require.NoError(t, AbandonSessions(ctx, &out, engine, []string{id}))
	assert.Contains(t, out.String(), "ABANDONED")

	out.Reset()
	err = AbandonSessions(ctx, &out, engine, []string{"nope"})
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Error abandoning 'nope'")

	assert.Error(t, InspectSession(ctx, &out, st.Sessions, "nope"))
}

func TestNewEngine_LinkFormat(t *testing.T) {
	cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML})
	cfg.BotLinkFormat = "https://example.com/join/{funnel}"
	st := openStack(t, cfg)
	engine, err := NewEngine(cfg, st, logging.NewNop())
	require.NoError(t, err)

	link, err := engine.Link(context.Background(), "sales")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/join/sales", link)
}

func TestValidate(t *testing.T) {
	cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML, "broken.yaml": brokenYAML})
	st := openStack(t, cfg)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, Validate(ctx, &out, st.Definitions, []string{"sales"}))
	assert.Contains(t, out.String(), "sales: valid")

	out.Reset()
	err := Validate(ctx, &out, st.Definitions, nil)
	assert.ErrorContains(t, err, "1 of 2 funnels are invalid")
	assert.Contains(t, out.String(), "broken:")
	assert.Contains(t, out.String(), "missing")

	out.Reset()
	assert.Error(t, Validate(ctx, &out, st.Definitions, []string{"ghost"}))
}

func TestGraph(t *testing.T) {
	cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML})
	st := openStack(t, cfg)
	engine, err := NewEngine(cfg, st, logging.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, Graph(ctx, &out, st.Definitions, st.Sessions, "sales", ""))
	assert.True(t, strings.HasPrefix(out.String(), "graph TD\n"))
	assert.NotContains(t, out.String(), "classDef current")

	res, err := engine.Advance(ctx, "bob", "sales", domain.Start())
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, Graph(ctx, &out, st.Definitions, st.Sessions, "sales", res.Session.ID))
	assert.Contains(t, out.String(), "class offer current")
	assert.Contains(t, out.String(), "class hello visited")

	assert.Error(t, Graph(ctx, &out, st.Definitions, st.Sessions, "ghost", ""))
}

func TestRunPlay(t *testing.T) {
	cfg := testConfig(t, map[string]string{"sales.yaml": salesYAML})
	var out bytes.Buffer

	err := RunPlay(context.Background(), cfg, PlayOptions{
		FunnelID:  "sales",
		VisitorID: "local",
		Plain:     true,
		Quiet:     true,
	}, strings.NewReader("1\n/pay\n"), &out, logging.NewNop())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Welcome!")
	assert.Contains(t, out.String(), "1. Sure")
	assert.Contains(t, out.String(), "Session finished: PAID")
}

type recordingDeliverer struct {
	calls int
	err   error
}

func (r *recordingDeliverer) Deliver(context.Context, string, string, []domain.Action) error {
	r.calls++
	return r.err
}

func TestFanout(t *testing.T) {
	ok := &recordingDeliverer{}
	unknown := &recordingDeliverer{err: discord.ErrUnknownChannel}
	broken := &recordingDeliverer{err: errors.New("boom")}

	require.NoError(t, Fanout{ok, unknown}.Deliver(context.Background(), "v", "f", nil))

	err := Fanout{broken, ok}.Deliver(context.Background(), "v", "f", nil)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 2, ok.calls)
	assert.Equal(t, 1, unknown.calls)
	assert.Equal(t, 1, broken.calls)

	var _ ports.Deliverer = Fanout{}
}

type countingReloader struct {
	reloads chan struct{}
}

func (c *countingReloader) Reload() error {
	c.reloads <- struct{}{}
	return nil
}

func TestWatchDefinitions(t *testing.T) {
	dir := t.TempDir()
	r := &countingReloader{reloads: make(chan struct{}, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- WatchDefinitions(ctx, dir, r, logging.NewNop()) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "sales.yaml"), []byte(salesYAML), 0644)
		select {
		case <-r.reloads:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
