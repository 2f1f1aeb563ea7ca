package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/taskflow-api/internal/events"
)

type recordingHandler struct {
	received chan *events.Event
	err      error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	h.received <- event
	return h.err
}

func newTestEvent(t *testing.T) *events.Event {
	t.Helper()
	event, err := events.NewEvent(events.TypeTaskInstanceCreated, events.TaskInstanceCreated{Title: "x"}, time.Now())
	require.NoError(t, err)
	return event
}

func TestAsyncEventHandler_DeliversOnPool(t *testing.T) {
	queue := NewTaskQueue(4, setupTestLogger())
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	handlerErr := errors.New("calendar down")
	failures := make(chan error, 1)
	pool.SetErrorHandler(func(task Task, err error) {
		failures <- err
	})
	pool.Start(context.Background())
	defer pool.Stop()

	inner := &recordingHandler{received: make(chan *events.Event, 1), err: handlerErr}
	h := NewAsyncEventHandler(inner, queue, setupTestLogger())

	event := newTestEvent(t)
	require.NoError(t, h.HandleEvent(context.Background(), event))

	select {
	case got := <-inner.received:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, handlerErr)
	case <-time.After(time.Second):
		t.Fatal("handler error did not reach the pool")
	}
}

func TestAsyncEventHandler_QueueFull(t *testing.T) {
	queue := NewTaskQueue(1, setupTestLogger())
	inner := &recordingHandler{received: make(chan *events.Event, 2)}
	h := NewAsyncEventHandler(inner, queue, setupTestLogger())

	require.NoError(t, h.HandleEvent(context.Background(), newTestEvent(t)))
	err := h.HandleEvent(context.Background(), newTestEvent(t))
	assert.ErrorIs(t, err, ErrQueueFull)

	queue.Close()
	assert.ErrorIs(t, h.HandleEvent(context.Background(), newTestEvent(t)), ErrQueueClosed)
}
