package task

import (
	"context"

	"github.com/google/uuid"
)

// Work item type identifiers, used for logging and metrics labels.
const (
	// TypeRecurringTemplate processes one recurring template.
	TypeRecurringTemplate = "recurring_template"

	// TypeReminder processes one reminder candidate.
	TypeReminder = "reminder"

	// TypeEvent delivers one event to an asynchronous handler.
	TypeEvent = "event"
)

// Task is a unit of work executed by the worker pool.
type Task interface {
	// ID returns the work item's identifier, usually the id of the row it
	// operates on.
	ID() uuid.UUID

	// Type returns the work item type identifier
	Type() string

	// Execute runs the work. It must honor ctx cancellation.
	Execute(ctx context.Context) error
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// FuncTask adapts a function to the Task interface.
type FuncTask struct {
	id       uuid.UUID
	taskType string
	fn       func(ctx context.Context) error
}

// NewFuncTask creates a task that runs fn.
func NewFuncTask(id uuid.UUID, taskType string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{id: id, taskType: taskType, fn: fn}
}

// ID implements Task.
func (t *FuncTask) ID() uuid.UUID { return t.id }

// Type implements Task.
func (t *FuncTask) Type() string { return t.taskType }

// Execute implements Task.
func (t *FuncTask) Execute(ctx context.Context) error { return t.fn(ctx) }

var _ Task = (*FuncTask)(nil)
