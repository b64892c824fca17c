package tableau

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EnrichmentPool fans per-item fetch work across a fixed number of
// goroutines. Items are addressed by index so callers can write results
// into pre-sized slices without locking.
type EnrichmentPool struct {
	workers int
}

// NewEnrichmentPool creates a pool with the given worker count.
func NewEnrichmentPool(workers int) *EnrichmentPool {
	if workers <= 0 {
		workers = 5
	}
	return &EnrichmentPool{workers: workers}
}

// Run calls fn once per index in [0, items) and blocks until every call
// returns or the context is cancelled. A panicking call is logged and
// skips that item only; the worker keeps draining.
func (p *EnrichmentPool) Run(ctx context.Context, items int, fn func(ctx context.Context, index int)) {
	jobs := make(chan int, p.workers*2)
	var wg sync.WaitGroup

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			for {
				select {
				case <-ctx.Done():
					return
				case i, ok := <-jobs:
					if !ok {
						return
					}
					runJob(ctx, id, i, fn)
				}
			}
		}(w)
	}

submit:
	for i := 0; i < items; i++ {
		select {
		case <-ctx.Done():
			break submit
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

// runJob isolates one invocation so a panic never takes the worker down
// with it; a stalled pool would block Run forever.
func runJob(ctx context.Context, worker, index int, fn func(ctx context.Context, index int)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("enrichment job panic recovered",
				slog.Int("worker_id", worker),
				slog.Int("index", index),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(ctx, index)
}
