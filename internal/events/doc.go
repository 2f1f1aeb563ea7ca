// Package events lets the batch jobs publish what they wrote without knowing
// who listens.
//
// The recurrence engine emits TypeTaskInstanceCreated and the reminder
// scanner emits TypeReminderCreated. Delivery is best-effort: a failing
// handler is logged and never undoes the write that produced the event.
package events
