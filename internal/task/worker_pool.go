package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// WorkerPool manages a pool of worker goroutines that process tasks
// from a task queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// taskQueue provides read access to the tasks to be processed
	taskQueue TaskQueueReader

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is used for cancellation and shutdown signaling
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	logger *slog.Logger

	// errorHandler is called when a task execution fails
	// If nil, errors are only logged
	errorHandler func(task Task, err error)

	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int

	// QueueSize is the buffer of long-running queues. Batches size their
	// queue to the batch instead.
	QueueSize int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// Stats counts what a pool did with the tasks it received.
type Stats struct {
	Completed int
	Failed    int
	Dropped   int
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(taskQueue TaskQueueReader, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", 1))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With(slog.String("component", "worker_pool")),
	}
}

// SetErrorHandler allows setting a custom error handler for task execution failures.
// It must be called before Start.
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.errorHandler = handler
}

// Start launches the workers. Tasks run with a context derived from parent;
// cancelling parent or calling Stop makes workers abandon queued tasks.
func (p *WorkerPool) Start(parent context.Context) {
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(parent)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Debug("worker pool started", slog.Int("worker_count", p.workerCount))
}

// Wait blocks until every worker has exited, which happens once the queue
// is closed and drained or the pool context is done.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Stop cancels running tasks and waits for the workers to exit.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Debug("worker pool stopped")
}

// Stats returns the counters accumulated since the pool was created.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Completed: int(p.completed.Load()),
		Failed:    int(p.failed.Load()),
		Dropped:   int(p.dropped.Load()),
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.taskQueue.GetChannel():
			if !ok {
				return
			}
			// Both select cases may be ready at once; a task received after
			// the deadline never starts.
			if p.ctx.Err() != nil {
				p.dropped.Add(1)
				return
			}
			p.process(t, id)
		}
	}
}

func (p *WorkerPool) process(t Task, workerID int) {
	log := p.logger.With(
		slog.String("task_id", t.ID().String()),
		slog.String("task_type", t.Type()),
		slog.Int("worker_id", workerID),
	)

	if err := p.execute(t); err != nil {
		p.failed.Add(1)
		log.Debug("task execution failed", slog.String("error", err.Error()))
		if p.errorHandler != nil {
			p.errorHandler(t, err)
		}
		return
	}
	p.completed.Add(1)
}

func (p *WorkerPool) execute(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.Execute(p.ctx)
}

// markDropped records tasks that were queued but never started.
func (p *WorkerPool) markDropped(n int) {
	p.dropped.Add(int64(n))
}
