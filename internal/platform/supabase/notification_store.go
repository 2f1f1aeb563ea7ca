package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/store"
)

const (
	notificationsTable  = "notifications"
	notificationColumns = "id,user_id,task_id,reminder_time,message,type,read,created_at"
)

type notificationRecord struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	TaskID       *uuid.UUID `json:"task_id"`
	ReminderTime *time.Time `json:"reminder_time"`
	Message      string     `json:"message"`
	Type         string     `json:"type"`
	Read         bool       `json:"read"`
	CreatedAt    time.Time  `json:"created_at"`
}

func decodeNotifications(body []byte) ([]*domain.Notification, error) {
	var records []notificationRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}

	out := make([]*domain.Notification, 0, len(records))
	for _, r := range records {
		out = append(out, &domain.Notification{
			ID:           r.ID,
			UserID:       r.UserID,
			TaskID:       r.TaskID,
			ReminderTime: utcPtr(r.ReminderTime),
			Message:      r.Message,
			Type:         domain.NotificationType(r.Type),
			Read:         r.Read,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// SupabaseNotificationStore implements store.NotificationStore against the
// PostgREST API.
type SupabaseNotificationStore struct {
	client Querier
	logger *slog.Logger
}

// NewSupabaseNotificationStore creates a notification store.
func NewSupabaseNotificationStore(client Querier, logger *slog.Logger) *SupabaseNotificationStore {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseNotificationStore{
		client: client,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

var _ store.NotificationStore = (*SupabaseNotificationStore)(nil)

// ReminderExists implements store.NotificationStore.ReminderExists
func (s *SupabaseNotificationStore) ReminderExists(
	ctx context.Context,
	taskID uuid.UUID,
	reminderTime time.Time,
) (bool, error) {
	body, _, err := s.client.From(notificationsTable).
		Select("id", "", false).
		Eq("task_id", taskID.String()).
		Eq("reminder_time", formatTime(reminderTime)).
		Eq("type", string(domain.NotificationTypeReminder)).
		Limit(1, "").
		Execute()
	if err != nil {
		return false, store.NewStoreError("notification", "reminder_exists", "failed to check reminder", err)
	}

	var ids []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(body, &ids); err != nil {
		return false, fmt.Errorf("decoding reminder lookup: %w", err)
	}
	return len(ids) > 0, nil
}

// Create implements store.NotificationStore.Create
func (s *SupabaseNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	rec := notificationRecord{
		ID:           n.ID,
		UserID:       n.UserID,
		TaskID:       n.TaskID,
		ReminderTime: n.ReminderTime,
		Message:      n.Message,
		Type:         string(n.Type),
		Read:         n.Read,
		CreatedAt:    n.CreatedAt,
	}

	_, _, err := s.client.From(notificationsTable).
		Insert(rec, false, "", "minimal", "").
		Execute()
	if err != nil {
		mapped := mapError(err, store.ErrReminderExists)
		if errors.Is(mapped, store.ErrReminderExists) {
			return mapped
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create notification",
			slog.String("error", err.Error()),
			slog.String("notification_id", n.ID.String()))
		return store.NewStoreError("notification", "create", "failed to insert notification", mapped)
	}
	return nil
}

// ListByUser implements store.NotificationStore.ListByUser
func (s *SupabaseNotificationStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	unreadOnly bool,
) ([]*domain.Notification, error) {
	query := s.client.From(notificationsTable).
		Select(notificationColumns, "", false).
		Eq("user_id", userID.String())
	if unreadOnly {
		query = query.Eq("read", "false")
	}

	body, _, err := query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, store.NewStoreError("notification", "list", "failed to query notifications", err)
	}
	return decodeNotifications(body)
}

// MarkRead implements store.NotificationStore.MarkRead
func (s *SupabaseNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	body, _, err := s.client.From(notificationsTable).
		Update(map[string]any{"read": true}, "representation", "").
		Eq("id", id.String()).
		Eq("user_id", userID.String()).
		Execute()
	if err != nil {
		return store.NewStoreError("notification", "mark_read", "failed to update notification", err)
	}

	updated, err := decodeNotifications(body)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return store.ErrNotificationNotFound
	}
	return nil
}
