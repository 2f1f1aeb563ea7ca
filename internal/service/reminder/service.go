// Package reminder implements the reminder scanner, which writes one
// notification for every open task whose reminder time enters the lookahead
// window.
package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/service"
	"github.com/taskflow/taskflow-api/internal/task"
)

// DefaultLookahead is the scan window used when none is configured.
const DefaultLookahead = time.Hour

// SkipReason explains why a candidate produced no notification.
type SkipReason string

// Possible skip reasons
const (
	// SkipAlreadyNotified means a reminder for the same task and reminder
	// time exists.
	SkipAlreadyNotified SkipReason = "already_notified"

	// SkipDone means the task was finished between the scan and processing.
	SkipDone SkipReason = "done"
)

// NotificationSummary identifies a notification written during a scan.
type NotificationSummary struct {
	TaskID         uuid.UUID `json:"task_id"`
	NotificationID uuid.UUID `json:"notification_id"`
	Message        string    `json:"message"`
}

// Skip is a candidate that produced no notification.
type Skip struct {
	TaskID uuid.UUID  `json:"task_id"`
	Reason SkipReason `json:"reason"`
}

// Summary is the JSON result of ScanAndNotify.
type Summary struct {
	Processed     int                   `json:"processed"`
	Notifications []NotificationSummary `json:"notifications"`
	Skipped       []Skip                `json:"skipped"`
	Errors        []service.TaskError   `json:"errors"`
	Partial       bool                  `json:"partial"`
}

// Config tunes a scan.
type Config struct {
	// Lookahead is the width of the window [now, now+Lookahead).
	Lookahead time.Duration

	Pool    task.WorkerPoolConfig
	Timeout time.Duration
}

// Service scans for due reminders.
type Service interface {
	// ScanAndNotify writes a reminder notification for every task whose
	// reminder_time falls in [now, now+lookahead) and is not done. A task is
	// notified at most once per reminder_time value, across runs.
	//
	// A failure of the candidate query returns an error wrapping
	// service.ErrFatalQuery and no summary.
	ScanAndNotify(ctx context.Context, now time.Time) (*Summary, error)
}
