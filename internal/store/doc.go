// Package store defines interfaces for task and notification persistence.
// Implementations live under internal/platform (postgres, sqlite, supabase);
// the recurrence engine and reminder scanner depend only on these interfaces.
package store
