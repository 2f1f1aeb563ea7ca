package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
)

// RunJobRequest is the optional body of the job trigger endpoints.
type RunJobRequest struct {
	// Now overrides the evaluation instant, for backfills and tests.
	// Defaults to the server clock.
	Now *time.Time `json:"now,omitempty"`
}

// NotificationResponse is one entry of the notification list.
type NotificationResponse struct {
	ID           uuid.UUID  `json:"id"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
	Message      string     `json:"message"`
	Type         string     `json:"type"`
	Read         bool       `json:"read"`
	CreatedAt    time.Time  `json:"created_at"`
}

func notificationToResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           n.ID,
		TaskID:       n.TaskID,
		ReminderTime: n.ReminderTime,
		Message:      n.Message,
		Type:         string(n.Type),
		Read:         n.Read,
		CreatedAt:    n.CreatedAt,
	}
}
