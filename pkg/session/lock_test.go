package session

import (
	"context"
	"fmt"
	"testing"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("visitor-%d|funnel", i)
		_ = mgr.WithLock(ctx, key, func(context.Context) error { return nil })
	}

	lockCount := len(mgr.locks)
	t.Logf("Keys locked: %d, Locks remaining: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after release", lockCount)
	}
}
