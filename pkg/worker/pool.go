package worker

import (
	"context"
	"sync"
)

// pool.go provides a bounded worker pool abstraction.

// Pool runs jobs with at most maxWorkers of them in flight
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit submits a job to the worker pool
func (p *Pool) Submit(job func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		job()
	}()
}

// Wait waits for all jobs to complete
func (p *Pool) Wait() {
	p.wg.Wait()
}

// ProcessWithProgress runs fn over items and reports the number of finished
// items after each one. Items not yet started when ctx is done are skipped
// and do not count as finished. The callback is never called concurrently.
func ProcessWithProgress[T any, R any](
	ctx context.Context,
	items []T,
	maxWorkers int,
	fn func(context.Context, T) (R, error),
	progress func(completed, total int),
) ([]R, []error) {
	pool := NewPool(maxWorkers)

	var mu sync.Mutex
	var results []R
	var errors []error
	completed := 0
	total := len(items)

	for _, item := range items {
		item := item
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			result, err := fn(ctx, item)

			mu.Lock()
			if err != nil {
				errors = append(errors, err)
			} else {
				results = append(results, result)
			}
			completed++
			if progress != nil {
				progress(completed, total)
			}
			mu.Unlock()
		})
	}

	pool.Wait()
	return results, errors
}
