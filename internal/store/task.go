package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
)

// TaskStore defines the interface for task persistence used by the
// recurring-task job and the reminder scan.
type TaskStore interface {
	// ListRecurringTemplates returns every task flagged as a recurring
	// template (recurring, is_recurring_parent, no parent), across all users.
	// Callers must hold the privileged batch principal.
	ListRecurringTemplates(ctx context.Context) ([]*domain.Task, error)

	// LatestInstanceAnchor returns the latest schedule anchor (due date, or
	// start date for undated instances) among the template's instances.
	// Returns nil when the template has no instances yet.
	LatestInstanceAnchor(ctx context.Context, templateID uuid.UUID) (*time.Time, error)

	// InstanceExists reports whether the template already has an instance
	// anchored at the given time.
	InstanceExists(ctx context.Context, templateID uuid.UUID, anchor time.Time) (bool, error)

	// CreateInstance inserts a generated instance and touches its template's
	// updated_at. Returns ErrInstanceExists when the (template, anchor) unique
	// index rejects the insert.
	CreateInstance(ctx context.Context, instance *domain.Task) error

	// DeactivateTemplate clears the recurring flag of a template whose
	// repeat_until bound has been passed.
	// Returns ErrTaskNotFound if the template does not exist.
	DeactivateTemplate(ctx context.Context, templateID uuid.UUID, now time.Time) error

	// ListReminderCandidates returns tasks with reminder_time in [from, to)
	// that are not done and not completed, across all users.
	ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error)

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}
