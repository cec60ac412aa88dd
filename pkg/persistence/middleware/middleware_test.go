package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/persistence/middleware"
	"github.com/aretw0/funnel/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Contract(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	repo := middleware.Chain(memory.NewStore(),
		middleware.NewInstrumentation(prometheus.NewRegistry()),
		middleware.NewLogging(logger),
	)
	ports.RunSessionRepositoryContract(t, repo)
	assert.Contains(t, buf.String(), "Session saved")
}

func TestInstrumentation_Outcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := middleware.NewInstrumentation(reg)(memory.NewStore())
	ctx := context.Background()

	s := domain.NewSession("s1", "v1", "f1", "a", time.Now())
	require.NoError(t, repo.Upsert(ctx, s, 0))
	assert.ErrorIs(t, repo.Upsert(ctx, s, 0), domain.ErrSessionConflict)
	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	n, err := testutil.GatherAndCount(reg, "funnel_session_store_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLogging_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	repo := middleware.NewLogging(logger)(memory.NewStore())
	ctx := context.Background()

	s := domain.NewSession("s1", "v1", "f1", "a", time.Now())
	require.NoError(t, repo.Upsert(ctx, s, 0))
	assert.Error(t, repo.Upsert(ctx, s, 0))
	assert.Empty(t, buf.String(), "conflicts and successes stay at debug level")
}
