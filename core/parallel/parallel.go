// Package parallel provides helpers for CPU-bound data-parallel loops.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallelize divides items across the available CPU cores and executes fn
// for each (start, end) range in its own goroutine.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWithWorkers(items, runtime.NumCPU(), fn)
}

// ParallelizeWithWorkers is Parallelize with an explicit worker count.
// A non-positive count falls back to the number of CPU cores.
func ParallelizeWithWorkers(items, numWorkers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > items {
		numWorkers = items
	}

	// Ceiling division so every item is covered.
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ParallelizeWithThreshold parallelizes only when items exceeds threshold;
// below it the loop runs sequentially in the calling goroutine.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}

	Parallelize(items, fn)
}

// ForEachChunk runs fn over [0, items) in chunks across numWorkers
// goroutines, stopping early when the context is cancelled or a chunk
// returns an error. Each chunk receives the context so long-running chunks
// can observe cancellation themselves.
//
// Callers that need a deterministic result must reduce their per-chunk
// results after ForEachChunk returns; completion order is not deterministic.
func ForEachChunk(ctx context.Context, items, numWorkers int, fn func(ctx context.Context, start, end int) error) error {
	if items == 0 {
		return nil
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > items {
		numWorkers = items
	}

	chunkSize := (items + numWorkers - 1) / numWorkers

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		g.Go(func() error {
			return fn(gctx, start, end)
		})
	}

	return g.Wait()
}
