package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. A failure that concerns one task is collected as a TaskError and never aborts a batch
// 2. A failure of the initial scan wraps ErrFatalQuery and aborts the run
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps ErrFatalQuery to HTTP 500 and the CLI to exit code 1
var (
	// ErrFatalQuery indicates that the query selecting the batch failed, so
	// no item was processed and no partial summary exists.
	ErrFatalQuery = errors.New("batch query failed")
)

// ErrorKind classifies a per-task failure in a batch summary.
type ErrorKind string

// Per-task error kinds
const (
	// KindValidation marks a task whose own data is unusable, e.g. a
	// recurring template without repeat_type.
	KindValidation ErrorKind = "validation"

	// KindStore marks a write or lookup that failed for this task only.
	// The jobs do not retry; the next scheduled run will.
	KindStore ErrorKind = "store"
)

// TaskError is one entry of a batch summary's errors list.
type TaskError struct {
	TaskID  uuid.UUID `json:"task_id"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	Err error `json:"-"`
}

// NewTaskError classifies err for the task with the given id.
func NewTaskError(taskID uuid.UUID, err error) TaskError {
	kind := KindStore
	if errors.Is(err, domain.ErrValidation) {
		kind = KindValidation
	}
	return TaskError{
		TaskID:  taskID,
		Kind:    kind,
		Message: err.Error(),
		Err:     err,
	}
}

// Error implements the error interface for TaskError.
func (e TaskError) Error() string {
	return fmt.Sprintf("task %s: %s error: %s", e.TaskID, e.Kind, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e TaskError) Unwrap() error {
	return e.Err
}

// ServiceError wraps errors from a service with the operation that failed.
type ServiceError struct {
	// Service is the name of the service (e.g., "recurring", "reminder")
	Service string
	// Operation is the operation that failed (e.g., "process_recurring_tasks")
	Operation string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s service %s operation failed", e.Service, e.Operation)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(serviceName, operation string, err error) *ServiceError {
	return &ServiceError{
		Service:   serviceName,
		Operation: operation,
		Err:       err,
	}
}

// NewFatalQueryError reports that the batch query of a job failed.
func NewFatalQueryError(serviceName, operation string, err error) *ServiceError {
	return NewServiceError(serviceName, operation, fmt.Errorf("%w: %w", ErrFatalQuery, err))
}
