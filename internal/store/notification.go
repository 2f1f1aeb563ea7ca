package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
)

// NotificationStore defines the interface for notification persistence.
type NotificationStore interface {
	// ReminderExists reports whether a reminder notification was already
	// written for the task at the given reminder time.
	ReminderExists(ctx context.Context, taskID uuid.UUID, reminderTime time.Time) (bool, error)

	// Create saves a new notification.
	// Returns ErrReminderExists when the (task_id, reminder_time) unique index
	// rejects a reminder.
	Create(ctx context.Context, notification *domain.Notification) error

	// ListByUser returns the user's notifications, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error)

	// MarkRead flags a notification as read.
	// Returns ErrNotificationNotFound if it does not exist or belongs to
	// another user.
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}
