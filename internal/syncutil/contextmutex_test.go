package syncutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestContextShardedMutex_LockUnlock(t *testing.T) {
	var m ContextShardedMutex

	unlock, err := m.LockContext(context.Background(), "warn_1")
	if err != nil {
		t.Fatalf("LockContext failed: %v", err)
	}
	unlock()
}

func TestContextShardedMutex_MutualExclusion(t *testing.T) {
	var m ContextShardedMutex
	ctx := context.Background()

	var counter int
	var wg sync.WaitGroup
	const n = 100

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unlock, err := m.LockContext(ctx, "warn_shared")
			if err != nil {
				t.Errorf("LockContext failed: %v", err)
				return
			}
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
}

func TestContextShardedMutex_DeadlineWhileWaiting(t *testing.T) {
	var m ContextShardedMutex

	unlock, err := m.LockContext(context.Background(), "warn_held")
	if err != nil {
		t.Fatalf("LockContext failed: %v", err)
	}
	defer unlock()

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := m.LockContext(waitCtx, "warn_held"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("LockContext while held: err = %v, want DeadlineExceeded", err)
	}
}

func TestContextShardedMutex_UnlockAllowsNext(t *testing.T) {
	var m ContextShardedMutex
	ctx := context.Background()

	unlock, err := m.LockContext(ctx, "warn_relay")
	if err != nil {
		t.Fatalf("LockContext failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := m.LockContext(ctx, "warn_relay")
		if err != nil {
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second locker got the shard before the first released it")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second locker never acquired the shard after release")
	}
}
