package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/store"
)

const taskColumns = `id, user_id, project_id, title, description, priority, tags, status, completed,
	due_date, start_date, reminder_time, recurring, repeat_type, repeat_interval, repeat_until,
	is_recurring_parent, parent_recurring_task_id, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
	types  *pgtype.Map
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
		types:  pgtype.NewMap(),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a store that runs its queries on tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
		types:  s.types,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresTaskStore) scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t          domain.Task
		projectID  uuid.NullUUID
		parentID   uuid.NullUUID
		status     string
		repeatType sql.NullString
		dueDate    sql.NullTime
		startDate  sql.NullTime
		reminderAt sql.NullTime
		until      sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&projectID,
		&t.Title,
		&t.Description,
		&t.Priority,
		s.types.SQLScanner(&t.Tags),
		&status,
		&t.Completed,
		&dueDate,
		&startDate,
		&reminderAt,
		&t.Recurring,
		&repeatType,
		&t.RepeatInterval,
		&until,
		&t.IsRecurringParent,
		&parentID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TaskStatus(status)
	t.RepeatType = domain.RepeatType(repeatType.String)
	if projectID.Valid {
		t.ProjectID = &projectID.UUID
	}
	if parentID.Valid {
		t.ParentRecurringTaskID = &parentID.UUID
	}
	t.DueDate = nullTimePtr(dueDate)
	t.StartDate = nullTimePtr(startDate)
	t.ReminderTime = nullTimePtr(reminderAt)
	t.RepeatUntil = nullTimePtr(until)

	return &t, nil
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// ListRecurringTemplates implements store.TaskStore.ListRecurringTemplates
func (s *PostgresTaskStore) ListRecurringTemplates(ctx context.Context) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE recurring = TRUE
		  AND is_recurring_parent = TRUE
		  AND parent_recurring_task_id IS NULL
		ORDER BY created_at ASC, id ASC`

	tasks, err := s.queryTasks(ctx, query)
	if err != nil {
		log.Error("failed to list recurring templates", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list_templates", "failed to query recurring templates", err)
	}

	log.Debug("listed recurring templates", slog.Int("count", len(tasks)))
	return tasks, nil
}

// LatestInstanceAnchor implements store.TaskStore.LatestInstanceAnchor
func (s *PostgresTaskStore) LatestInstanceAnchor(ctx context.Context, templateID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT MAX(COALESCE(due_date, start_date))
		FROM tasks
		WHERE parent_recurring_task_id = $1
	`

	var latest sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, templateID).Scan(&latest); err != nil {
		return nil, store.NewStoreError("task", "latest_instance", "failed to query latest instance", MapError(err))
	}

	return nullTimePtr(latest), nil
}

// InstanceExists implements store.TaskStore.InstanceExists
func (s *PostgresTaskStore) InstanceExists(ctx context.Context, templateID uuid.UUID, anchor time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE parent_recurring_task_id = $1
			  AND COALESCE(due_date, start_date) = $2
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, templateID, anchor.UTC()).Scan(&exists); err != nil {
		return false, store.NewStoreError("task", "instance_exists", "failed to check instance", MapError(err))
	}

	return exists, nil
}

// CreateInstance implements store.TaskStore.CreateInstance
// When the store is bound to a *sql.DB the insert and the template touch run
// in one transaction; a store bound to a transaction joins it.
func (s *PostgresTaskStore) CreateInstance(ctx context.Context, instance *domain.Task) error {
	if instance.ParentRecurringTaskID == nil {
		return fmt.Errorf("%w: instance has no parent template", store.ErrInvalidEntity)
	}

	if db, ok := s.db.(*sql.DB); ok {
		return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			return s.WithTx(tx).createInstance(ctx, instance)
		})
	}
	return s.createInstance(ctx, instance)
}

func (s *PostgresTaskStore) createInstance(ctx context.Context, instance *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	insert := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	tags := instance.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := s.db.ExecContext(ctx, insert,
		instance.ID,
		instance.UserID,
		uuidPtrArg(instance.ProjectID),
		instance.Title,
		instance.Description,
		instance.Priority,
		tags,
		string(instance.Status),
		instance.Completed,
		timePtrArg(instance.DueDate),
		timePtrArg(instance.StartDate),
		timePtrArg(instance.ReminderTime),
		instance.Recurring,
		nullString(string(instance.RepeatType)),
		instance.RepeatInterval,
		timePtrArg(instance.RepeatUntil),
		instance.IsRecurringParent,
		uuidPtrArg(instance.ParentRecurringTaskID),
		instance.CreatedAt.UTC(),
		instance.UpdatedAt.UTC(),
	)
	if err != nil {
		mapped := MapUniqueViolation(err, store.ErrInstanceExists)
		if errors.Is(mapped, store.ErrInstanceExists) {
			log.Debug("instance already exists",
				slog.String("template_id", instance.ParentRecurringTaskID.String()))
			return mapped
		}
		log.Error("failed to create task instance",
			slog.String("error", err.Error()),
			slog.String("task_id", instance.ID.String()),
			slog.String("template_id", instance.ParentRecurringTaskID.String()))
		return store.NewStoreError("task", "create_instance", "failed to insert instance", mapped)
	}

	touch := `UPDATE tasks SET updated_at = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, touch, *instance.ParentRecurringTaskID, instance.CreatedAt.UTC()); err != nil {
		return store.NewStoreError("task", "create_instance", "failed to touch template", MapError(err))
	}

	log.Info("task instance created",
		slog.String("task_id", instance.ID.String()),
		slog.String("template_id", instance.ParentRecurringTaskID.String()))
	return nil
}

// DeactivateTemplate implements store.TaskStore.DeactivateTemplate
func (s *PostgresTaskStore) DeactivateTemplate(ctx context.Context, templateID uuid.UUID, now time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE tasks SET recurring = FALSE, updated_at = $2 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, templateID, now.UTC())
	if err != nil {
		return store.NewStoreError("task", "deactivate", "failed to deactivate template", MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	log.Info("recurring template deactivated", slog.String("template_id", templateID.String()))
	return nil
}

// ListReminderCandidates implements store.TaskStore.ListReminderCandidates
func (s *PostgresTaskStore) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE reminder_time >= $1
		  AND reminder_time < $2
		  AND status <> 'Done'
		  AND completed = FALSE
		ORDER BY reminder_time ASC, id ASC`

	tasks, err := s.queryTasks(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		log.Error("failed to list reminder candidates", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list_reminders", "failed to query reminder candidates", err)
	}

	return tasks, nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := s.scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, store.NewStoreError("task", "get", "failed to get task", MapError(err))
	}

	return t, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func uuidPtrArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
