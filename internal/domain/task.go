package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task as shown to the user.
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo       TaskStatus = "Todo"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

// RepeatType is the calendar unit a recurring task advances by.
type RepeatType string

// Supported repeat types
const (
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
)

// ParseRepeatType normalizes a stored repeat type value.
// Returns ErrInvalidRepeatType for empty or unknown values.
func ParseRepeatType(s string) (RepeatType, error) {
	rt := RepeatType(strings.ToLower(strings.TrimSpace(s)))
	if !rt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepeatType, s)
	}
	return rt, nil
}

// Valid reports whether the repeat type is one of the supported units.
func (r RepeatType) Valid() bool {
	switch r {
	case RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	default:
		return false
	}
}

// Task is a unit of work owned by exactly one user. A task flagged with
// IsRecurringParent is a template; tasks with ParentRecurringTaskID set are
// instances generated from that template.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	Status    TaskStatus `json:"status"`
	Completed bool       `json:"completed"`

	DueDate      *time.Time `json:"due_date,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`

	Recurring             bool       `json:"recurring"`
	RepeatType            RepeatType `json:"repeat_type,omitempty"`
	RepeatInterval        int        `json:"repeat_interval,omitempty"`
	RepeatUntil           *time.Time `json:"repeat_until,omitempty"`
	IsRecurringParent     bool       `json:"is_recurring_parent"`
	ParentRecurringTaskID *uuid.UUID `json:"parent_recurring_task_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsInstance reports whether the task was generated from a template.
func (t *Task) IsInstance() bool {
	return t.ParentRecurringTaskID != nil
}

// IsTemplate reports whether the task is an active recurring template.
func (t *Task) IsTemplate() bool {
	return t.Recurring && t.IsRecurringParent && !t.IsInstance()
}

// IsDone reports whether the task is finished, by status or by flag.
func (t *Task) IsDone() bool {
	return t.Completed || t.Status == TaskStatusDone
}

// ScheduleAnchor returns the timestamp occurrences are computed from: the
// due date, or the start date when the task has no due date.
func (t *Task) ScheduleAnchor() (time.Time, bool) {
	if t.DueDate != nil {
		return *t.DueDate, true
	}
	if t.StartDate != nil {
		return *t.StartDate, true
	}
	return time.Time{}, false
}

// ValidateTemplate checks that the task carries a usable repeat
// configuration. All failures wrap ErrValidation.
func (t *Task) ValidateTemplate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidID)
	}
	if !t.IsTemplate() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNotTemplate)
	}
	if !t.RepeatType.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidRepeatType, t.RepeatType)
	}
	if t.RepeatInterval <= 0 {
		return fmt.Errorf("%w: %w: got %d", ErrValidation, ErrInvalidRepeatInterval, t.RepeatInterval)
	}
	if _, ok := t.ScheduleAnchor(); !ok {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingSchedule)
	}
	if t.RepeatUntil != nil && t.DueDate != nil && t.RepeatUntil.Before(*t.DueDate) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrRepeatUntilBeforeDue)
	}
	return nil
}

// NewInstance builds the occurrence of a template scheduled at dueDate and
// startDate. Content fields are copied; workflow fields start fresh.
func (t *Task) NewInstance(dueDate, startDate *time.Time, now time.Time) *Task {
	parentID := t.ID

	var tags []string
	if len(t.Tags) > 0 {
		tags = make([]string, len(t.Tags))
		copy(tags, t.Tags)
	}

	var projectID *uuid.UUID
	if t.ProjectID != nil {
		p := *t.ProjectID
		projectID = &p
	}

	return &Task{
		ID:                    uuid.New(),
		UserID:                t.UserID,
		ProjectID:             projectID,
		Title:                 t.Title,
		Description:           t.Description,
		Priority:              t.Priority,
		Tags:                  tags,
		Status:                TaskStatusTodo,
		Completed:             false,
		DueDate:               dueDate,
		StartDate:             startDate,
		Recurring:             false,
		RepeatType:            t.RepeatType,
		RepeatInterval:        t.RepeatInterval,
		IsRecurringParent:     false,
		ParentRecurringTaskID: &parentID,
		CreatedAt:             now.UTC(),
		UpdatedAt:             now.UTC(),
	}
}
