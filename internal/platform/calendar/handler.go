package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/events"
)

// EventCreator is the part of Client the sync handler needs.
type EventCreator interface {
	CreateEvent(ctx context.Context, userID uuid.UUID, event Event) error
}

// SyncHandler pushes every dated task instance to its owner's calendar.
type SyncHandler struct {
	creator EventCreator
	logger  *slog.Logger
}

var _ events.EventHandler = (*SyncHandler)(nil)

// NewSyncHandler creates a handler for task_instance_created events.
func NewSyncHandler(creator EventCreator, logger *slog.Logger) *SyncHandler {
	if creator == nil {
		panic("creator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{
		creator: creator,
		logger:  logger.With(slog.String("component", "calendar_sync")),
	}
}

// HandleEvent implements events.EventHandler. Users without a connected
// calendar and instances without a due date are skipped.
func (h *SyncHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeTaskInstanceCreated {
		return nil
	}

	var payload events.TaskInstanceCreated
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("decoding %s payload: %w", event.Type, err)
	}
	if payload.DueDate == nil {
		return nil
	}

	err := h.creator.CreateEvent(ctx, payload.UserID, NewTaskEvent(payload.TaskID, payload.Title, *payload.DueDate))
	switch {
	case err == nil:
		h.logger.Debug("instance pushed to calendar", slog.String("task_id", payload.TaskID.String()))
		return nil
	case errors.Is(err, ErrNoToken):
		return nil
	default:
		return fmt.Errorf("pushing task %s to calendar: %w", payload.TaskID, err)
	}
}
