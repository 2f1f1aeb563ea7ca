package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/store"
)

type notificationRow struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	TaskID       sql.NullString `db:"task_id"`
	ReminderTime sql.NullInt64  `db:"reminder_time"`
	Message      string         `db:"message"`
	Type         string         `db:"type"`
	Read         bool           `db:"read"`
	CreatedAt    int64          `db:"created_at"`
}

func (r notificationRow) toDomain() (*domain.Notification, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing notification id: %w", err)
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("parsing user id for notification %s: %w", r.ID, err)
	}
	taskID, err := parseNullUUID(r.TaskID)
	if err != nil {
		return nil, fmt.Errorf("parsing task id for notification %s: %w", r.ID, err)
	}

	return &domain.Notification{
		ID:           id,
		UserID:       userID,
		TaskID:       taskID,
		ReminderTime: fromMillis(r.ReminderTime),
		Message:      r.Message,
		Type:         domain.NotificationType(r.Type),
		Read:         r.Read,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}, nil
}

// SQLiteNotificationStore implements store.NotificationStore on SQLite.
type SQLiteNotificationStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLiteNotificationStore creates a notification store over a database
// returned by Open.
func NewSQLiteNotificationStore(db *sqlx.DB, logger *slog.Logger) *SQLiteNotificationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

var _ store.NotificationStore = (*SQLiteNotificationStore)(nil)

// ReminderExists implements store.NotificationStore.ReminderExists
func (s *SQLiteNotificationStore) ReminderExists(
	ctx context.Context,
	taskID uuid.UUID,
	reminderTime time.Time,
) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE task_id = ? AND reminder_time = ? AND type = 'reminder'
		)`,
		taskID.String(), reminderTime.UnixMilli())
	if err != nil {
		return false, store.NewStoreError("notification", "reminder_exists", "failed to check reminder", err)
	}
	return exists, nil
}

// Create implements store.NotificationStore.Create
func (s *SQLiteNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := n.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, task_id, reminder_time, message, type, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.UserID.String(), uuidArg(n.TaskID), toMillis(n.ReminderTime),
		n.Message, string(n.Type), n.Read, n.CreatedAt.UnixMilli(),
	)
	if err != nil {
		mapped := mapError(err, store.ErrReminderExists)
		if errors.Is(mapped, store.ErrReminderExists) {
			return mapped
		}
		log.Error("failed to create notification",
			slog.String("error", err.Error()),
			slog.String("notification_id", n.ID.String()))
		return store.NewStoreError("notification", "create", "failed to insert notification", mapped)
	}
	return nil
}

// ListByUser implements store.NotificationStore.ListByUser
func (s *SQLiteNotificationStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	unreadOnly bool,
) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, task_id, reminder_time, message, type, read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, userID.String()); err != nil {
		return nil, store.NewStoreError("notification", "list", "failed to query notifications", err)
	}

	out := make([]*domain.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead implements store.NotificationStore.MarkRead
func (s *SQLiteNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		id.String(), userID.String())
	if err != nil {
		return store.NewStoreError("notification", "mark_read", "failed to update notification", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotificationNotFound
	}
	return nil
}
