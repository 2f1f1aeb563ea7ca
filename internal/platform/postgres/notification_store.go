package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/store"
)

const notificationColumns = `id, user_id, task_id, reminder_time, message, type, read, created_at`

// PostgresNotificationStore implements the store.NotificationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgreSQL implementation of the
// NotificationStore interface. If logger is nil, a default logger will be used.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// Ensure PostgresNotificationStore implements store.NotificationStore interface
var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// ReminderExists implements store.NotificationStore.ReminderExists
func (s *PostgresNotificationStore) ReminderExists(
	ctx context.Context,
	taskID uuid.UUID,
	reminderTime time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE task_id = $1 AND reminder_time = $2 AND type = 'reminder'
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, taskID, reminderTime.UTC()).Scan(&exists); err != nil {
		return false, store.NewStoreError("notification", "reminder_exists", "failed to check reminder", MapError(err))
	}

	return exists, nil
}

// Create implements store.NotificationStore.Create
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := n.Validate(); err != nil {
		log.Warn("notification validation failed during create",
			slog.String("error", err.Error()),
			slog.String("notification_id", n.ID.String()))
		return err
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		uuidPtrArg(n.TaskID),
		timePtrArg(n.ReminderTime),
		n.Message,
		string(n.Type),
		n.Read,
		n.CreatedAt.UTC(),
	)
	if err != nil {
		mapped := MapUniqueViolation(err, store.ErrReminderExists)
		if errors.Is(mapped, store.ErrReminderExists) {
			return mapped
		}
		log.Error("failed to create notification",
			slog.String("error", err.Error()),
			slog.String("notification_id", n.ID.String()),
			slog.String("user_id", n.UserID.String()))
		return store.NewStoreError("notification", "create", "failed to insert notification", mapped)
	}

	log.Info("notification created",
		slog.String("notification_id", n.ID.String()),
		slog.String("user_id", n.UserID.String()),
		slog.String("type", string(n.Type)))
	return nil
}

// ListByUser implements store.NotificationStore.ListByUser
func (s *PostgresNotificationStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	unreadOnly bool,
) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID, unreadOnly)
	if err != nil {
		return nil, store.NewStoreError("notification", "list", "failed to query notifications", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	notifications := []*domain.Notification{}
	for rows.Next() {
		var (
			n          domain.Notification
			taskID     uuid.NullUUID
			reminderAt sql.NullTime
			nType      string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &taskID, &reminderAt, &n.Message, &nType, &n.Read, &n.CreatedAt); err != nil {
			return nil, store.NewStoreError("notification", "list", "failed to scan notification", err)
		}
		if taskID.Valid {
			n.TaskID = &taskID.UUID
		}
		n.ReminderTime = nullTimePtr(reminderAt)
		n.Type = domain.NotificationType(nType)
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("notification", "list", "error iterating notifications", err)
	}

	return notifications, nil
}

// MarkRead implements store.NotificationStore.MarkRead
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`

	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return store.NewStoreError("notification", "mark_read", "failed to update notification", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrNotificationNotFound)
}
