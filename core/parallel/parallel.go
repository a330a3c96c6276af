package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
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

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Jobs runs fn(i) for every i in [0, nJobs) on at most nWorkers goroutines.
// nWorkers <= 0 means runtime.NumCPU(). Each job owns its index, so callers
// write results into per-index slots without locking.
//
// The first non-nil error cancels the context passed to the remaining jobs
// and is returned once every started job has finished. Jobs not yet started
// when the context is cancelled are skipped.
func Jobs(ctx context.Context, nJobs, nWorkers int, fn func(ctx context.Context, i int) error) error {
	if nJobs == 0 {
		return nil
	}
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > nJobs {
		nWorkers = nJobs
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	c := make(chan int, nJobs)
	for i := 0; i < nJobs; i++ {
		c <- i
	}
	close(c)

	wg.Add(nWorkers)
	for w := 0; w < nWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := range c {
				if ctx.Err() != nil {
					return
				}
				if err := fn(ctx, i); err != nil {
					fail(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
