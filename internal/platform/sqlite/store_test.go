package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/store"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedTemplate(t *testing.T, s *SQLiteTaskStore, due time.Time) *domain.Task {
	t.Helper()

	projectID := uuid.New()
	template := &domain.Task{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		ProjectID:         &projectID,
		Title:             "Weekly review",
		Tags:              []string{"planning", "weekly"},
		Status:            domain.TaskStatusTodo,
		DueDate:           &due,
		Recurring:         true,
		RepeatType:        domain.RepeatWeekly,
		RepeatInterval:    1,
		IsRecurringParent: true,
		CreatedAt:         due.Add(-time.Hour),
		UpdatedAt:         due.Add(-time.Hour),
	}
	require.NoError(t, s.CreateTask(context.Background(), template))
	return template
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	version, err := SchemaVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	// Reapplying is a no-op.
	require.NoError(t, migrate(context.Background(), db))
}

func TestSQLiteTaskStore_TemplatesAndInstances(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteTaskStore(newTestDB(t), nil)

	due := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	template := seedTemplate(t, s, due)

	templates, err := s.ListRecurringTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	got := templates[0]
	assert.Equal(t, template.ID, got.ID)
	assert.Equal(t, []string{"planning", "weekly"}, got.Tags)
	assert.Equal(t, *template.ProjectID, *got.ProjectID)
	assert.True(t, due.Equal(*got.DueDate))
	assert.True(t, got.IsTemplate())

	latest, err := s.LatestInstanceAnchor(ctx, template.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	next := due.AddDate(0, 0, 7)
	instance := template.NewInstance(&next, nil, next.Add(-2*time.Hour))
	require.NoError(t, s.CreateInstance(ctx, instance))

	exists, err := s.InstanceExists(ctx, template.ID, next)
	require.NoError(t, err)
	assert.True(t, exists)

	latest, err = s.LatestInstanceAnchor(ctx, template.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, next.Equal(*latest))

	// Instances are not templates.
	templates, err = s.ListRecurringTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 1)

	reloaded, err := s.GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.UpdatedAt.Equal(instance.CreatedAt), "template should be touched")

	stored, err := s.GetByID(ctx, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ParentRecurringTaskID)
	assert.Equal(t, template.ID, *stored.ParentRecurringTaskID)
	assert.False(t, stored.Recurring)
}

func TestSQLiteTaskStore_CreateInstance_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteTaskStore(newTestDB(t), nil)

	due := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	template := seedTemplate(t, s, due)
	next := due.AddDate(0, 0, 7)

	require.NoError(t, s.CreateInstance(ctx, template.NewInstance(&next, nil, next)))

	err := s.CreateInstance(ctx, template.NewInstance(&next, nil, next))
	assert.ErrorIs(t, err, store.ErrInstanceExists)

	// Start-date-only instances are deduplicated on start_date.
	startOnly := due.AddDate(0, 0, 14)
	require.NoError(t, s.CreateInstance(ctx, template.NewInstance(nil, &startOnly, startOnly)))
	err = s.CreateInstance(ctx, template.NewInstance(nil, &startOnly, startOnly))
	assert.ErrorIs(t, err, store.ErrInstanceExists)
}

func TestSQLiteTaskStore_DeactivateTemplate(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteTaskStore(newTestDB(t), nil)

	template := seedTemplate(t, s, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.DeactivateTemplate(ctx, template.ID, time.Now()))

	templates, err := s.ListRecurringTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, templates)

	assert.ErrorIs(t, s.DeactivateTemplate(ctx, uuid.New(), time.Now()), store.ErrTaskNotFound)
}

func TestSQLiteTaskStore_ListReminderCandidates(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteTaskStore(newTestDB(t), nil)

	now := time.Date(2024, time.March, 8, 9, 0, 0, 0, time.UTC)
	mk := func(title string, offset time.Duration, status domain.TaskStatus, completed bool) *domain.Task {
		at := now.Add(offset)
		task := &domain.Task{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			Title:        title,
			Status:       status,
			Completed:    completed,
			ReminderTime: &at,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, s.CreateTask(ctx, task))
		return task
	}

	inWindow := mk("in window", 30*time.Minute, domain.TaskStatusTodo, false)
	atStart := mk("at start", 0, domain.TaskStatusInProgress, false)
	mk("past", -time.Minute, domain.TaskStatusTodo, false)
	mk("too late", 90*time.Minute, domain.TaskStatusTodo, false)
	mk("at end", time.Hour, domain.TaskStatusTodo, false)
	mk("done", 10*time.Minute, domain.TaskStatusDone, false)
	mk("completed", 10*time.Minute, domain.TaskStatusTodo, true)

	tasks, err := s.ListReminderCandidates(ctx, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, atStart.ID, tasks[0].ID)
	assert.Equal(t, inWindow.ID, tasks[1].ID)
}

func TestSQLiteNotificationStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := NewSQLiteTaskStore(db, nil)
	notifications := NewSQLiteNotificationStore(db, nil)

	reminderAt := time.Date(2024, time.March, 8, 9, 30, 0, 0, time.UTC)
	task := &domain.Task{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Title:        "Pay rent",
		Status:       domain.TaskStatusTodo,
		ReminderTime: &reminderAt,
		CreatedAt:    reminderAt.Add(-time.Hour),
		UpdatedAt:    reminderAt.Add(-time.Hour),
	}
	require.NoError(t, tasks.CreateTask(ctx, task))

	exists, err := notifications.ReminderExists(ctx, task.ID, reminderAt)
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := domain.NewReminderNotification(task, reminderAt.Add(-20*time.Minute))
	require.NoError(t, err)
	require.NoError(t, notifications.Create(ctx, n))

	exists, err = notifications.ReminderExists(ctx, task.ID, reminderAt)
	require.NoError(t, err)
	assert.True(t, exists)

	again, err := domain.NewReminderNotification(task, reminderAt)
	require.NoError(t, err)
	assert.ErrorIs(t, notifications.Create(ctx, again), store.ErrReminderExists)

	// Non-reminder notifications are not deduplicated.
	info := &domain.Notification{
		ID:        uuid.New(),
		UserID:    task.UserID,
		Message:   "Welcome",
		Type:      domain.NotificationTypeInfo,
		CreatedAt: reminderAt,
	}
	require.NoError(t, notifications.Create(ctx, info))

	list, err := notifications.ListByUser(ctx, task.UserID, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, info.ID, list[0].ID, "newest first")
	assert.Equal(t, `Reminder: Task "Pay rent" is due soon!`, list[1].Message)

	require.NoError(t, notifications.MarkRead(ctx, task.UserID, info.ID))
	assert.ErrorIs(t, notifications.MarkRead(ctx, uuid.New(), n.ID), store.ErrNotificationNotFound)

	unread, err := notifications.ListByUser(ctx, task.UserID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, n.ID, unread[0].ID)
}
