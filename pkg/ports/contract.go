package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionRepositoryContract runs a suite of tests to verify that a
// SessionRepository implementation adheres to the interface contract.
func RunSessionRepositoryContract(t *testing.T, repo SessionRepository) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	now := time.Now().UTC().Truncate(time.Millisecond)

	newSession := func(id, visitor, funnel string) *domain.VisitorSession {
		return domain.NewSession(id+"-"+suffix, visitor+"-"+suffix, funnel, "n0", now)
	}

	t.Run("Insert and Get", func(t *testing.T) {
		s := newSession("s1", "alice", "f1")
		require.NoError(t, repo.Upsert(ctx, s, 0))
		assert.Equal(t, int64(1), s.Version)

		loaded, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.VisitorID, loaded.VisitorID)
		assert.Equal(t, "n0", loaded.CurrentNodeID)
		assert.Equal(t, domain.SessionActive, loaded.Status)
		assert.Equal(t, int64(1), loaded.Version)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("FindActive", func(t *testing.T) {
		s := newSession("s2", "bob", "f1")
		require.NoError(t, repo.Upsert(ctx, s, 0))

		found, err := repo.FindActive(ctx, s.VisitorID, "f1")
		require.NoError(t, err)
		assert.Equal(t, s.ID, found.ID)

		_, err = repo.FindActive(ctx, s.VisitorID, "other-funnel")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Update With Version", func(t *testing.T) {
		s := newSession("s3", "carol", "f1")
		require.NoError(t, repo.Upsert(ctx, s, 0))

		next := s.Clone()
		next.CurrentNodeID = "n1"
		require.NoError(t, repo.Upsert(ctx, next, s.Version))
		assert.Equal(t, int64(2), next.Version)

		loaded, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "n1", loaded.CurrentNodeID)
	})

	t.Run("Stale Version Is A Conflict", func(t *testing.T) {
		s := newSession("s4", "dave", "f1")
		require.NoError(t, repo.Upsert(ctx, s, 0))

		winner := s.Clone()
		winner.CurrentNodeID = "n1"
		require.NoError(t, repo.Upsert(ctx, winner, 1))

		loser := s.Clone()
		loser.CurrentNodeID = "n1"
		err := repo.Upsert(ctx, loser, 1)
		assert.ErrorIs(t, err, domain.ErrSessionConflict)

		loaded, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
	})

	t.Run("Second Active Session Is A Conflict", func(t *testing.T) {
		first := newSession("s5", "erin", "f1")
		require.NoError(t, repo.Upsert(ctx, first, 0))

		dup := newSession("s5-dup", "erin", "f1")
		err := repo.Upsert(ctx, dup, 0)
		assert.ErrorIs(t, err, domain.ErrSessionConflict)
	})

	t.Run("Complete", func(t *testing.T) {
		s := newSession("s6", "frank", "f1")
		require.NoError(t, repo.Upsert(ctx, s, 0))

		at := now.Add(time.Minute)
		require.NoError(t, repo.Complete(ctx, s.ID, domain.SessionCompleted, at, s.Version))

		loaded, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionCompleted, loaded.Status)
		require.NotNil(t, loaded.CompletedAt)
		assert.WithinDuration(t, at, *loaded.CompletedAt, time.Second)

		_, err = repo.FindActive(ctx, s.VisitorID, "f1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		err = repo.Complete(ctx, s.ID, domain.SessionCompleted, at, s.Version)
		assert.ErrorIs(t, err, domain.ErrSessionConflict)

		// A new ACTIVE session may follow a completed one.
		again := newSession("s6-again", "frank", "f1")
		assert.NoError(t, repo.Upsert(ctx, again, 0))
	})

	t.Run("Payment Fields Round Trip", func(t *testing.T) {
		s := newSession("s7", "grace", "f1")
		amount := int64(10000)
		paidAt := now
		s.PaidAmount = &amount
		s.PaidAt = &paidAt
		s.PaymentRef = "pay-1"
		require.NoError(t, repo.Upsert(ctx, s, 0))

		loaded, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded.PaidAmount)
		assert.Equal(t, amount, *loaded.PaidAmount)
		assert.Equal(t, "pay-1", loaded.PaymentRef)
		assert.True(t, loaded.Paid())
	})

	t.Run("List", func(t *testing.T) {
		sessions, err := repo.List(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(sessions))
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
		assert.Contains(t, ids, "s1-"+suffix)
		assert.Contains(t, ids, "s2-"+suffix)
	})
}

// RunTimerStoreContract verifies that a TimerStore implementation adheres to
// the interface contract.
func RunTimerStoreContract(t *testing.T, store TimerStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	timer := func(i int, due time.Time) domain.Timer {
		return domain.Timer{
			ID:        fmt.Sprintf("timer-%d", i),
			SessionID: fmt.Sprintf("session-%d", i),
			VisitorID: "visitor",
			FunnelID:  "funnel",
			NodeID:    "delay",
			DueAt:     due,
		}
	}

	t.Run("Pending In DueAt Order", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, timer(3, base.Add(3*time.Second))))
		require.NoError(t, store.Put(ctx, timer(1, base.Add(1*time.Second))))
		require.NoError(t, store.Put(ctx, timer(2, base.Add(2*time.Second))))

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, "timer-1", pending[0].ID)
		assert.Equal(t, "timer-2", pending[1].ID)
		assert.Equal(t, "timer-3", pending[2].ID)
		assert.Equal(t, "session-1", pending[0].SessionID)
		assert.Equal(t, "delay", pending[0].NodeID)
		assert.WithinDuration(t, base.Add(time.Second), pending[0].DueAt, time.Second)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "timer-2"))
		require.NoError(t, store.Delete(ctx, "timer-unknown"))

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "timer-1", pending[0].ID)
		assert.Equal(t, "timer-3", pending[1].ID)
	})

	t.Run("Put Replaces", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, timer(3, base.Add(-time.Second))))

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "timer-3", pending[0].ID)

		require.NoError(t, store.Delete(ctx, "timer-1"))
		require.NoError(t, store.Delete(ctx, "timer-3"))
	})
}
