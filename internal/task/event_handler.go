package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskflow/taskflow-api/internal/events"
)

// AsyncEventHandler moves event handling off the emitting goroutine: each
// event becomes a task on a queue served by a long-running WorkerPool. The
// wrapped handler runs with the pool's context, not the emitter's, so it
// outlives the job request that produced the event.
type AsyncEventHandler struct {
	next   events.EventHandler
	queue  TaskQueueWriter
	logger *slog.Logger
}

// NewAsyncEventHandler wraps next so that it runs on queue's workers.
func NewAsyncEventHandler(
	next events.EventHandler,
	queue TaskQueueWriter,
	logger *slog.Logger,
) *AsyncEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncEventHandler{
		next:   next,
		queue:  queue,
		logger: logger.With(slog.String("component", "async_event_handler")),
	}
}

// HandleEvent enqueues the event. It fails only when the queue is full or
// closed; the wrapped handler's own errors reach the pool's error handler.
func (h *AsyncEventHandler) HandleEvent(_ context.Context, event *events.Event) error {
	t := NewFuncTask(event.ID, TypeEvent, func(ctx context.Context) error {
		return h.next.HandleEvent(ctx, event)
	})

	if err := h.queue.Enqueue(t); err != nil {
		h.logger.Warn("dropping event",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to enqueue event %s: %w", event.ID, err)
	}
	return nil
}

var _ events.EventHandler = (*AsyncEventHandler)(nil)
