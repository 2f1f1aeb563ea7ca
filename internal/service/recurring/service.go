// Package recurring implements the recurrence engine: it materializes the
// next occurrence of each recurring template as a new task row.
package recurring

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/service"
	"github.com/taskflow/taskflow-api/internal/task"
)

// Outcome is what GenerateNextInstance did with a template.
type Outcome string

// Possible outcomes
const (
	// OutcomeCreated means a new instance was inserted.
	OutcomeCreated Outcome = "created"

	// OutcomeNotDue means the next occurrence falls on a later day.
	OutcomeNotDue Outcome = "not_due"

	// OutcomeAlreadyExists means the next occurrence was already
	// materialized, by an earlier or a concurrent run.
	OutcomeAlreadyExists Outcome = "already_exists"

	// OutcomeCycleComplete means the next occurrence would exceed
	// repeat_until. The template has been deactivated.
	OutcomeCycleComplete Outcome = "cycle_complete"
)

// Result describes the handling of one template.
type Result struct {
	TemplateID uuid.UUID
	Outcome    Outcome

	// InstanceID is set when Outcome is OutcomeCreated.
	InstanceID *uuid.UUID

	// DueDate and StartDate are the computed next occurrence, when one
	// could be computed.
	DueDate   *time.Time
	StartDate *time.Time
}

// Skip is a template that was handled without creating an instance.
type Skip struct {
	TaskID uuid.UUID `json:"task_id"`
	Reason Outcome   `json:"reason"`
}

// Summary is the JSON result of ProcessRecurringTasks.
type Summary struct {
	// ProcessedCount counts templates handled without error, whatever the
	// outcome.
	ProcessedCount int                 `json:"processed_count"`
	CreatedTasks   []uuid.UUID         `json:"created_tasks"`
	Skipped        []Skip              `json:"skipped"`
	Errors         []service.TaskError `json:"errors"`

	// Partial is true when the run deadline expired before every template
	// was handled.
	Partial bool `json:"partial"`
}

// Config tunes a batch run.
type Config struct {
	// Pool bounds the number of templates processed concurrently.
	Pool task.WorkerPoolConfig

	// Timeout is the overall deadline of one ProcessRecurringTasks call.
	// Zero means the caller's context alone bounds the run.
	Timeout time.Duration
}

// Service generates instances of recurring templates.
type Service interface {
	// GenerateNextInstance computes the template's next occurrence after
	// its latest instance and inserts it when it is due.
	//
	// Returns:
	//   - (Result, nil) with one of the Outcome values
	//   - (Result, error wrapping domain.ErrValidation) for a malformed template
	//   - (Result, error) for a store failure; nothing is retried
	//
	// Calling it again without intervening changes never creates a second
	// instance for the same occurrence.
	GenerateNextInstance(ctx context.Context, template *domain.Task, now time.Time) (Result, error)

	// ProcessRecurringTasks runs GenerateNextInstance for every recurring
	// template of every user. Per-template failures are collected in the
	// summary. A failure to list the templates returns an error wrapping
	// service.ErrFatalQuery and no summary.
	ProcessRecurringTasks(ctx context.Context, now time.Time) (*Summary, error)
}

// Common error types for the recurrence engine
var (
	// ErrNilTemplate is returned when GenerateNextInstance receives no template.
	ErrNilTemplate = errors.New("template cannot be nil")
)
