package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the batch jobs.
const (
	// TypeTaskInstanceCreated is emitted after the recurrence engine
	// materialized a new occurrence of a template.
	TypeTaskInstanceCreated = "task_instance_created"

	// TypeReminderCreated is emitted after the reminder scanner wrote a
	// reminder notification.
	TypeReminderCreated = "reminder_created"
)

// Event is a fact published by a job after a successful write. Handlers
// receive it after the fact and cannot veto it.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// TaskInstanceCreated is the payload of TypeTaskInstanceCreated.
type TaskInstanceCreated struct {
	TaskID     uuid.UUID  `json:"task_id"`
	TemplateID uuid.UUID  `json:"template_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Title      string     `json:"title"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
}

// ReminderCreated is the payload of TypeReminderCreated.
type ReminderCreated struct {
	NotificationID uuid.UUID `json:"notification_id"`
	TaskID         uuid.UUID `json:"task_id"`
	UserID         uuid.UUID `json:"user_id"`
	ReminderTime   time.Time `json:"reminder_time"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an event of the given type with a JSON-encoded payload.
func NewEvent(eventType string, payload any, now time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: now.UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Handlers ignore event types they do not care about.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// NopEmitter discards every event. Jobs use it when nothing subscribes.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *Event) error { return nil }

var _ EventEmitter = NopEmitter{}
