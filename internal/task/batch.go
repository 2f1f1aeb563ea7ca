package task

import (
	"context"
	"log/slog"
)

// BatchResult summarizes one RunBatch call.
type BatchResult struct {
	Submitted int
	Stats
}

// Partial reports whether some tasks never started because the context
// ended first.
func (r BatchResult) Partial() bool {
	return r.Dropped > 0
}

// RunBatch executes tasks on a bounded pool and blocks until all of them
// ran or ctx is done. Tasks not started by then are counted as dropped;
// tasks already running observe the cancellation through their context.
// Task errors go to onError, which may be nil, and never stop the batch.
func RunBatch(
	ctx context.Context,
	tasks []Task,
	config WorkerPoolConfig,
	logger *slog.Logger,
	onError func(task Task, err error),
) BatchResult {
	result := BatchResult{Submitted: len(tasks)}
	if len(tasks) == 0 {
		return result
	}

	queue := NewTaskQueue(len(tasks), logger)
	for _, t := range tasks {
		// Capacity equals the batch size, so this cannot fail.
		_ = queue.Enqueue(t)
	}
	queue.Close()

	pool := NewWorkerPool(queue, config, logger)
	if onError != nil {
		pool.SetErrorHandler(onError)
	}
	pool.Start(ctx)
	pool.Wait()
	pool.markDropped(len(queue.Drain()))
	pool.cancel()

	result.Stats = pool.Stats()
	return result
}
