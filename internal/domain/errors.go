package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidRepeatType is returned when a recurring task carries an
	// unknown or missing repeat type.
	ErrInvalidRepeatType = errors.New("invalid repeat type")

	// ErrInvalidRepeatInterval is returned when a recurring task has a
	// missing or non-positive repeat interval.
	ErrInvalidRepeatInterval = errors.New("repeat interval must be positive")

	// ErrMissingSchedule is returned when a recurring template has neither a
	// due date nor a start date to anchor its occurrences.
	ErrMissingSchedule = errors.New("recurring template has no due or start date")

	// ErrRepeatUntilBeforeDue is returned when repeat_until precedes the
	// template's own due date.
	ErrRepeatUntilBeforeDue = errors.New("repeat_until is before the template due date")

	// ErrNotTemplate is returned when an operation that requires a recurring
	// template receives an instance or a non-recurring task.
	ErrNotTemplate = errors.New("task is not a recurring template")

	// ErrInvalidNotificationType is returned for unknown notification types.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrEmptyMessage is returned when a notification has no message text.
	ErrEmptyMessage = errors.New("notification message cannot be empty")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
