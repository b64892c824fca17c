package tableau

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEnrichmentPoolProcessesEveryIndex(t *testing.T) {
	pool := NewEnrichmentPool(4)

	var mu sync.Mutex
	seen := make(map[int]bool)

	pool.Run(context.Background(), 50, func(_ context.Context, i int) {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})

	if len(seen) != 50 {
		t.Fatalf("expected 50 indices processed, got %d", len(seen))
	}
	for i := 0; i < 50; i++ {
		if !seen[i] {
			t.Fatalf("index %d never processed", i)
		}
	}
}

func TestEnrichmentPoolStopsOnCancel(t *testing.T) {
	pool := NewEnrichmentPool(1)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	processed := 0

	pool.Run(ctx, 1000, func(_ context.Context, i int) {
		mu.Lock()
		processed++
		mu.Unlock()
		if i == 0 {
			cancel()
		}
		time.Sleep(time.Millisecond)
	})

	mu.Lock()
	defer mu.Unlock()
	if processed >= 1000 {
		t.Fatalf("expected cancellation to stop submission, processed %d", processed)
	}
}

func TestEnrichmentPoolRecoversPanic(t *testing.T) {
	pool := NewEnrichmentPool(2)

	var mu sync.Mutex
	processed := 0

	pool.Run(context.Background(), 10, func(_ context.Context, i int) {
		if i == 3 {
			panic("worker blew up")
		}
		mu.Lock()
		processed++
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	if processed != 9 {
		t.Fatalf("expected every non-panicking item processed, processed %d", processed)
	}
}

func TestEnrichmentPoolDrainsWhenEveryJobPanics(t *testing.T) {
	// One worker and more jobs than the channel buffer holds: if a panic
	// killed the worker, submission would block and Run would never return.
	pool := NewEnrichmentPool(1)

	var mu sync.Mutex
	attempted := 0

	done := make(chan struct{})
	go func() {
		pool.Run(context.Background(), 10, func(_ context.Context, _ int) {
			mu.Lock()
			attempted++
			mu.Unlock()
			panic("item blew up")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return with every job panicking")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempted != 10 {
		t.Fatalf("attempted = %d, want 10", attempted)
	}
}

func TestEnrichmentPoolDefaultsWorkerCount(t *testing.T) {
	pool := NewEnrichmentPool(0)
	if pool.workers != 5 {
		t.Fatalf("expected default worker count 5, got %d", pool.workers)
	}
}
