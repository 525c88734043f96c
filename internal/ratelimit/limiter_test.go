package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireBurstThenRefill(t *testing.T) {
	t.Parallel()

	// 3 ops per 300ms window: the first 3 acquires consume the burst, the
	// 4th waits ~100ms for a refill.
	l := New(3, 300*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("burst acquires should be immediate, took %v", elapsed)
	}

	start = time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire after burst: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected ~100ms wait for refill, got %v", elapsed)
	}
}

func TestAcquireConcurrentCallersAllProceed(t *testing.T) {
	t.Parallel()

	l := New(2, 200*time.Millisecond)
	ctx := context.Background()

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err == nil {
				done.Add(1)
			}
		}()
	}
	wg.Wait()

	// 2 immediate + 3 queued; nobody starves.
	if got := done.Load(); got != 5 {
		t.Fatalf("expected all 5 callers to acquire, got %d", got)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	l := New(1, time.Minute)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cancelCtx); err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestNewClampsInvalidConfig(t *testing.T) {
	t.Parallel()

	l := New(0, 0)
	if l.Limit() != 1 {
		t.Fatalf("expected clamped limit of 1, got %d", l.Limit())
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire with clamped config: %v", err)
	}
}
