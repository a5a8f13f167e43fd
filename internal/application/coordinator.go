package application

import (
	"context"
	"sync"
	"time"

	"github.com/jobrunner/tilesync/internal/domain"
)

// DefaultWorkers is the size of the worker pool when none is configured.
const DefaultWorkers = 10

// RunPool processes items with a fixed number of workers fed over a bounded
// channel and blocks until every item has a result. Each item is handed to
// exactly one worker and never re-queued. Results keep the order of items.
//
// When ctx is canceled, feeding stops and every unfed item gets
// abandoned(item, ctx.Err()) as its result.
func RunPool[T, R any](
	ctx context.Context,
	items []T,
	workers int,
	fn func(ctx context.Context, item T) R,
	abandoned func(item T, err error) R,
) []R {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	jobs := make(chan int, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = fn(ctx, items[i])
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i := range items {
			select {
			case jobs <- i:
			case <-ctx.Done():
				for j := i; j < len(items); j++ {
					results[j] = abandoned(items[j], ctx.Err())
				}
				return
			}
		}
	}()

	wg.Wait()
	return results
}

// TaskFunc executes one transfer task.
type TaskFunc func(ctx context.Context, task domain.TransferTask) domain.TaskResult

// Coordinator drives transfer tasks through a worker pool.
type Coordinator struct {
	workers int
}

// NewCoordinator creates a coordinator with the given pool size.
func NewCoordinator(workers int) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Coordinator{workers: workers}
}

// Workers returns the pool size.
func (c *Coordinator) Workers() int {
	return c.workers
}

// Run executes all tasks and returns their results in task order with a
// tally. Task failures are part of the results, never an error.
func (c *Coordinator) Run(ctx context.Context, tasks []domain.TransferTask, fn TaskFunc) ([]domain.TaskResult, domain.Tally) {
	results := RunPool(ctx, tasks, c.workers, fn, func(task domain.TransferTask, err error) domain.TaskResult {
		return domain.TaskResult{
			Task:    task,
			Outcome: domain.OutcomeFailed,
			Error:   err.Error(),
		}
	})

	var tally domain.Tally
	for _, r := range results {
		tally.Add(r.Outcome)
	}
	return results, tally
}

// withTimeout runs fn under a per-call deadline when timeout is positive.
func withTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
