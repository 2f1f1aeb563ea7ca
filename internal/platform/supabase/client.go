// Package supabase implements the task and notification stores on top of a
// hosted Supabase project, talking to its PostgREST endpoint with the
// service-role key.
//
// The service-role key bypasses row level security. Stores built here are
// the privileged cross-user principal used by the batch jobs and must never
// be handed a per-user request.
package supabase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
	"github.com/taskflow/taskflow-api/internal/config"
	"github.com/taskflow/taskflow-api/internal/store"
)

// Querier is the part of a Supabase or PostgREST client the stores use.
// Both *supabase.Client and *postgrest.Client satisfy it.
type Querier interface {
	From(table string) *postgrest.QueryBuilder
}

// NewClient creates a Supabase client authenticated with the service-role key.
func NewClient(cfg config.SupabaseConfig) (*supa.Client, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" {
		return nil, errors.New("supabase url and service role key are required")
	}

	client, err := supa.NewClient(cfg.URL, cfg.ServiceRoleKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return client, nil
}

const (
	uniqueViolationCode = "23505"
	foreignKeyCode      = "23503"
	checkViolationCode  = "23514"
)

// mapError maps a PostgREST error to a store error. postgrest-go reports
// failures as "(code) message", so the Postgres SQLSTATE is matched in the
// text.
func mapError(err error, duplicate error) error {
	if err == nil {
		return nil
	}

	switch {
	case hasCode(err, uniqueViolationCode):
		if duplicate == nil {
			duplicate = store.ErrDuplicate
		}
		return fmt.Errorf("%w: %v", duplicate, err)
	case hasCode(err, foreignKeyCode), hasCode(err, checkViolationCode):
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	default:
		return err
	}
}

func hasCode(err error, code string) bool {
	msg := err.Error()
	return strings.Contains(msg, "("+code+")") || strings.Contains(msg, `"code":"`+code+`"`)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
