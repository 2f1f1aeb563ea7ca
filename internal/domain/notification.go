package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies a notification for display.
type NotificationType string

// Possible notification types
const (
	NotificationTypeReminder NotificationType = "reminder"
	NotificationTypeGoal     NotificationType = "goal"
	NotificationTypeWarning  NotificationType = "warning"
	NotificationTypeInfo     NotificationType = "info"
)

// Valid reports whether the notification type is known.
func (n NotificationType) Valid() bool {
	switch n {
	case NotificationTypeReminder, NotificationTypeGoal, NotificationTypeWarning, NotificationTypeInfo:
		return true
	default:
		return false
	}
}

// Notification is a user-visible message. Reminder notifications carry the
// task and the reminder_time value they were emitted for; together those
// form the dedupe key.
type Notification struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	TaskID       *uuid.UUID       `json:"task_id,omitempty"`
	ReminderTime *time.Time       `json:"reminder_time,omitempty"`
	Message      string           `json:"message"`
	Type         NotificationType `json:"type"`
	Read         bool             `json:"read"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ReminderMessage renders the text shown for a task reminder.
func ReminderMessage(title string) string {
	// The title is inserted verbatim, no escaping.
	return fmt.Sprintf("Reminder: Task \"%s\" is due soon!", title)
}

// NewReminderNotification creates the reminder notification for a task whose
// reminder_time entered the scan window.
func NewReminderNotification(task *Task, now time.Time) (*Notification, error) {
	if task.ReminderTime == nil {
		return nil, fmt.Errorf("%w: task %s has no reminder time", ErrValidation, task.ID)
	}

	taskID := task.ID
	reminderAt := task.ReminderTime.UTC()

	n := &Notification{
		ID:           uuid.New(),
		UserID:       task.UserID,
		TaskID:       &taskID,
		ReminderTime: &reminderAt,
		Message:      ReminderMessage(task.Title),
		Type:         NotificationTypeReminder,
		Read:         false,
		CreatedAt:    now.UTC(),
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks if the Notification has valid data.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil || n.UserID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidID)
	}
	if n.Message == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyMessage)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidNotificationType, n.Type)
	}
	if n.Type == NotificationTypeReminder && (n.TaskID == nil || n.ReminderTime == nil) {
		return fmt.Errorf("%w: reminder notification requires task and reminder time", ErrValidation)
	}
	return nil
}
