package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
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

const taskColumns = `id, user_id, project_id, title, description, priority, tags, status, completed,
	due_date, start_date, reminder_time, recurring, repeat_type, repeat_interval, repeat_until,
	is_recurring_parent, parent_recurring_task_id, created_at, updated_at`

// taskRow mirrors the tasks table.
type taskRow struct {
	ID                    string         `db:"id"`
	UserID                string         `db:"user_id"`
	ProjectID             sql.NullString `db:"project_id"`
	Title                 string         `db:"title"`
	Description           string         `db:"description"`
	Priority              string         `db:"priority"`
	Tags                  string         `db:"tags"`
	Status                string         `db:"status"`
	Completed             bool           `db:"completed"`
	DueDate               sql.NullInt64  `db:"due_date"`
	StartDate             sql.NullInt64  `db:"start_date"`
	ReminderTime          sql.NullInt64  `db:"reminder_time"`
	Recurring             bool           `db:"recurring"`
	RepeatType            sql.NullString `db:"repeat_type"`
	RepeatInterval        int            `db:"repeat_interval"`
	RepeatUntil           sql.NullInt64  `db:"repeat_until"`
	IsRecurringParent     bool           `db:"is_recurring_parent"`
	ParentRecurringTaskID sql.NullString `db:"parent_recurring_task_id"`
	CreatedAt             int64          `db:"created_at"`
	UpdatedAt             int64          `db:"updated_at"`
}

func (r taskRow) toDomain() (*domain.Task, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing task id: %w", err)
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("parsing user id for task %s: %w", r.ID, err)
	}

	t := &domain.Task{
		ID:                id,
		UserID:            userID,
		Title:             r.Title,
		Description:       r.Description,
		Priority:          r.Priority,
		Status:            domain.TaskStatus(r.Status),
		Completed:         r.Completed,
		DueDate:           fromMillis(r.DueDate),
		StartDate:         fromMillis(r.StartDate),
		ReminderTime:      fromMillis(r.ReminderTime),
		Recurring:         r.Recurring,
		RepeatType:        domain.RepeatType(r.RepeatType.String),
		RepeatInterval:    r.RepeatInterval,
		RepeatUntil:       fromMillis(r.RepeatUntil),
		IsRecurringParent: r.IsRecurringParent,
		CreatedAt:         time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:         time.UnixMilli(r.UpdatedAt).UTC(),
	}

	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &t.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags for task %s: %w", r.ID, err)
		}
	}
	if t.ProjectID, err = parseNullUUID(r.ProjectID); err != nil {
		return nil, fmt.Errorf("parsing project id for task %s: %w", r.ID, err)
	}
	if t.ParentRecurringTaskID, err = parseNullUUID(r.ParentRecurringTaskID); err != nil {
		return nil, fmt.Errorf("parsing parent id for task %s: %w", r.ID, err)
	}

	return t, nil
}

// SQLiteTaskStore implements store.TaskStore on an embedded SQLite database.
type SQLiteTaskStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLiteTaskStore creates a task store over a database returned by Open.
func NewSQLiteTaskStore(db *sqlx.DB, logger *slog.Logger) *SQLiteTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*SQLiteTaskStore)(nil)

func (s *SQLiteTaskStore) selectTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	tasks := make([]*domain.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// ListRecurringTemplates implements store.TaskStore.ListRecurringTemplates
func (s *SQLiteTaskStore) ListRecurringTemplates(ctx context.Context) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE recurring = 1 AND is_recurring_parent = 1 AND parent_recurring_task_id IS NULL
		ORDER BY created_at ASC, id ASC`

	tasks, err := s.selectTasks(ctx, query)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list recurring templates",
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list_templates", "failed to query recurring templates", err)
	}
	return tasks, nil
}

// LatestInstanceAnchor implements store.TaskStore.LatestInstanceAnchor
func (s *SQLiteTaskStore) LatestInstanceAnchor(ctx context.Context, templateID uuid.UUID) (*time.Time, error) {
	var latest sql.NullInt64
	err := s.db.GetContext(ctx, &latest,
		`SELECT MAX(COALESCE(due_date, start_date)) FROM tasks WHERE parent_recurring_task_id = ?`,
		templateID.String())
	if err != nil {
		return nil, store.NewStoreError("task", "latest_instance", "failed to query latest instance", err)
	}
	return fromMillis(latest), nil
}

// InstanceExists implements store.TaskStore.InstanceExists
func (s *SQLiteTaskStore) InstanceExists(ctx context.Context, templateID uuid.UUID, anchor time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE parent_recurring_task_id = ? AND COALESCE(due_date, start_date) = ?
		)`,
		templateID.String(), anchor.UnixMilli())
	if err != nil {
		return false, store.NewStoreError("task", "instance_exists", "failed to check instance", err)
	}
	return exists, nil
}

// CreateInstance implements store.TaskStore.CreateInstance
func (s *SQLiteTaskStore) CreateInstance(ctx context.Context, instance *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if instance.ParentRecurringTaskID == nil {
		return fmt.Errorf("%w: instance has no parent template", store.ErrInvalidEntity)
	}

	tags, err := json.Marshal(nonNilTags(instance.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return store.NewStoreError("task", "create_instance", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		instance.ID.String(),
		instance.UserID.String(),
		uuidArg(instance.ProjectID),
		instance.Title,
		instance.Description,
		instance.Priority,
		string(tags),
		string(instance.Status),
		instance.Completed,
		toMillis(instance.DueDate),
		toMillis(instance.StartDate),
		toMillis(instance.ReminderTime),
		instance.Recurring,
		nullString(string(instance.RepeatType)),
		instance.RepeatInterval,
		toMillis(instance.RepeatUntil),
		instance.IsRecurringParent,
		uuidArg(instance.ParentRecurringTaskID),
		instance.CreatedAt.UnixMilli(),
		instance.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		mapped := mapError(err, store.ErrInstanceExists)
		if errors.Is(mapped, store.ErrInstanceExists) {
			return mapped
		}
		log.Error("failed to create task instance",
			slog.String("error", err.Error()),
			slog.String("template_id", instance.ParentRecurringTaskID.String()))
		return store.NewStoreError("task", "create_instance", "failed to insert instance", mapped)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = ? WHERE id = ?`,
		instance.CreatedAt.UnixMilli(), instance.ParentRecurringTaskID.String()); err != nil {
		return store.NewStoreError("task", "create_instance", "failed to touch template", err)
	}

	if err := tx.Commit(); err != nil {
		return store.NewStoreError("task", "create_instance", "failed to commit", err)
	}

	log.Info("task instance created",
		slog.String("task_id", instance.ID.String()),
		slog.String("template_id", instance.ParentRecurringTaskID.String()))
	return nil
}

// DeactivateTemplate implements store.TaskStore.DeactivateTemplate
func (s *SQLiteTaskStore) DeactivateTemplate(ctx context.Context, templateID uuid.UUID, now time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET recurring = 0, updated_at = ? WHERE id = ?`,
		now.UnixMilli(), templateID.String())
	if err != nil {
		return store.NewStoreError("task", "deactivate", "failed to deactivate template", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// ListReminderCandidates implements store.TaskStore.ListReminderCandidates
func (s *SQLiteTaskStore) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE reminder_time >= ? AND reminder_time < ?
		  AND status <> 'Done' AND completed = 0
		ORDER BY reminder_time ASC, id ASC`

	tasks, err := s.selectTasks(ctx, query, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, store.NewStoreError("task", "list_reminders", "failed to query reminder candidates", err)
	}
	return tasks, nil
}

// GetByID implements store.TaskStore.GetByID
func (s *SQLiteTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, store.NewStoreError("task", "get", "failed to get task", err)
	}
	return row.toDomain()
}

// CreateTask inserts an arbitrary task row. It backs fixtures and the local
// development seed; the jobs only ever create instances.
func (s *SQLiteTaskStore) CreateTask(ctx context.Context, t *domain.Task) error {
	tags, err := json.Marshal(nonNilTags(t.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.UserID.String(), uuidArg(t.ProjectID),
		t.Title, t.Description, t.Priority, string(tags), string(t.Status), t.Completed,
		toMillis(t.DueDate), toMillis(t.StartDate), toMillis(t.ReminderTime),
		t.Recurring, nullString(string(t.RepeatType)), t.RepeatInterval, toMillis(t.RepeatUntil),
		t.IsRecurringParent, uuidArg(t.ParentRecurringTaskID),
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
	)
	return mapError(err, nil)
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func uuidArg(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullUUID(v sql.NullString) (*uuid.UUID, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
