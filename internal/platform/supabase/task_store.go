package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/store"
)

const (
	tasksTable  = "tasks"
	taskColumns = "id,user_id,project_id,title,description,priority,tags,status,completed," +
		"due_date,start_date,reminder_time,recurring,repeat_type,repeat_interval,repeat_until," +
		"is_recurring_parent,parent_recurring_task_id,created_at,updated_at"
)

// taskRecord is the JSON shape of a tasks row as PostgREST returns it.
type taskRecord struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"user_id"`
	ProjectID             *uuid.UUID `json:"project_id"`
	Title                 string     `json:"title"`
	Description           *string    `json:"description"`
	Priority              *string    `json:"priority"`
	Tags                  []string   `json:"tags"`
	Status                string     `json:"status"`
	Completed             bool       `json:"completed"`
	DueDate               *time.Time `json:"due_date"`
	StartDate             *time.Time `json:"start_date"`
	ReminderTime          *time.Time `json:"reminder_time"`
	Recurring             bool       `json:"recurring"`
	RepeatType            *string    `json:"repeat_type"`
	RepeatInterval        *int       `json:"repeat_interval"`
	RepeatUntil           *time.Time `json:"repeat_until"`
	IsRecurringParent     bool       `json:"is_recurring_parent"`
	ParentRecurringTaskID *uuid.UUID `json:"parent_recurring_task_id"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (r taskRecord) toDomain() *domain.Task {
	t := &domain.Task{
		ID:                    r.ID,
		UserID:                r.UserID,
		ProjectID:             r.ProjectID,
		Title:                 r.Title,
		Tags:                  r.Tags,
		Status:                domain.TaskStatus(r.Status),
		Completed:             r.Completed,
		DueDate:               utcPtr(r.DueDate),
		StartDate:             utcPtr(r.StartDate),
		ReminderTime:          utcPtr(r.ReminderTime),
		Recurring:             r.Recurring,
		RepeatUntil:           utcPtr(r.RepeatUntil),
		IsRecurringParent:     r.IsRecurringParent,
		ParentRecurringTaskID: r.ParentRecurringTaskID,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Priority != nil {
		t.Priority = *r.Priority
	}
	if r.RepeatType != nil {
		t.RepeatType = domain.RepeatType(*r.RepeatType)
	}
	if r.RepeatInterval != nil {
		t.RepeatInterval = *r.RepeatInterval
	}
	return t
}

func newTaskRecord(t *domain.Task) taskRecord {
	rec := taskRecord{
		ID:                    t.ID,
		UserID:                t.UserID,
		ProjectID:             t.ProjectID,
		Title:                 t.Title,
		Description:           &t.Description,
		Tags:                  t.Tags,
		Status:                string(t.Status),
		Completed:             t.Completed,
		DueDate:               t.DueDate,
		StartDate:             t.StartDate,
		ReminderTime:          t.ReminderTime,
		Recurring:             t.Recurring,
		RepeatUntil:           t.RepeatUntil,
		IsRecurringParent:     t.IsRecurringParent,
		ParentRecurringTaskID: t.ParentRecurringTaskID,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
	if t.Priority != "" {
		rec.Priority = &t.Priority
	}
	if t.RepeatType != "" {
		rt := string(t.RepeatType)
		rec.RepeatType = &rt
	}
	if t.RepeatInterval > 0 {
		n := t.RepeatInterval
		rec.RepeatInterval = &n
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return rec
}

func decodeTasks(body []byte) ([]*domain.Task, error) {
	var records []taskRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decoding tasks: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.toDomain())
	}
	return tasks, nil
}

// SupabaseTaskStore implements store.TaskStore against the PostgREST API.
type SupabaseTaskStore struct {
	client Querier
	logger *slog.Logger
}

// NewSupabaseTaskStore creates a task store. client must carry the
// service-role key.
func NewSupabaseTaskStore(client Querier, logger *slog.Logger) *SupabaseTaskStore {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseTaskStore{
		client: client,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*SupabaseTaskStore)(nil)

// ListRecurringTemplates implements store.TaskStore.ListRecurringTemplates
func (s *SupabaseTaskStore) ListRecurringTemplates(ctx context.Context) ([]*domain.Task, error) {
	body, _, err := s.client.From(tasksTable).
		Select(taskColumns, "", false).
		Eq("recurring", "true").
		Eq("is_recurring_parent", "true").
		Is("parent_recurring_task_id", "null").
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list recurring templates",
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list_templates", "failed to query recurring templates", err)
	}
	return decodeTasks(body)
}

// instanceAnchors returns the schedule anchor of every instance of the
// template. PostgREST cannot express COALESCE in a filter, so callers
// reduce the result in Go.
func (s *SupabaseTaskStore) instanceAnchors(templateID uuid.UUID) ([]time.Time, error) {
	body, _, err := s.client.From(tasksTable).
		Select("due_date,start_date", "", false).
		Eq("parent_recurring_task_id", templateID.String()).
		Execute()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		DueDate   *time.Time `json:"due_date"`
		StartDate *time.Time `json:"start_date"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decoding instance anchors: %w", err)
	}

	anchors := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		switch {
		case r.DueDate != nil:
			anchors = append(anchors, r.DueDate.UTC())
		case r.StartDate != nil:
			anchors = append(anchors, r.StartDate.UTC())
		}
	}
	return anchors, nil
}

// LatestInstanceAnchor implements store.TaskStore.LatestInstanceAnchor
func (s *SupabaseTaskStore) LatestInstanceAnchor(ctx context.Context, templateID uuid.UUID) (*time.Time, error) {
	anchors, err := s.instanceAnchors(templateID)
	if err != nil {
		return nil, store.NewStoreError("task", "latest_instance", "failed to query latest instance", err)
	}

	var latest *time.Time
	for i := range anchors {
		if latest == nil || anchors[i].After(*latest) {
			latest = &anchors[i]
		}
	}
	return latest, nil
}

// InstanceExists implements store.TaskStore.InstanceExists
func (s *SupabaseTaskStore) InstanceExists(ctx context.Context, templateID uuid.UUID, anchor time.Time) (bool, error) {
	anchors, err := s.instanceAnchors(templateID)
	if err != nil {
		return false, store.NewStoreError("task", "instance_exists", "failed to check instance", err)
	}
	for _, a := range anchors {
		if a.Equal(anchor) {
			return true, nil
		}
	}
	return false, nil
}

// CreateInstance implements store.TaskStore.CreateInstance. PostgREST has
// no multi-statement transactions, so the template touch is a separate
// request issued only after the insert succeeded.
func (s *SupabaseTaskStore) CreateInstance(ctx context.Context, instance *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if instance.ParentRecurringTaskID == nil {
		return fmt.Errorf("%w: instance has no parent template", store.ErrInvalidEntity)
	}

	_, _, err := s.client.From(tasksTable).
		Insert(newTaskRecord(instance), false, "", "minimal", "").
		Execute()
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

	_, _, err = s.client.From(tasksTable).
		Update(map[string]any{"updated_at": formatTime(instance.CreatedAt)}, "minimal", "").
		Eq("id", instance.ParentRecurringTaskID.String()).
		Execute()
	if err != nil {
		log.Warn("instance created but template touch failed",
			slog.String("error", err.Error()),
			slog.String("template_id", instance.ParentRecurringTaskID.String()))
	}

	log.Info("task instance created",
		slog.String("task_id", instance.ID.String()),
		slog.String("template_id", instance.ParentRecurringTaskID.String()))
	return nil
}

// DeactivateTemplate implements store.TaskStore.DeactivateTemplate
func (s *SupabaseTaskStore) DeactivateTemplate(ctx context.Context, templateID uuid.UUID, now time.Time) error {
	body, _, err := s.client.From(tasksTable).
		Update(map[string]any{"recurring": false, "updated_at": formatTime(now)}, "representation", "").
		Eq("id", templateID.String()).
		Execute()
	if err != nil {
		return store.NewStoreError("task", "deactivate", "failed to deactivate template", mapError(err, nil))
	}

	tasks, err := decodeTasks(body)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// ListReminderCandidates implements store.TaskStore.ListReminderCandidates
func (s *SupabaseTaskStore) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	body, _, err := s.client.From(tasksTable).
		Select(taskColumns, "", false).
		// Filters are keyed by column, so both bounds go in one and=(...).
		And(fmt.Sprintf("reminder_time.gte.%s,reminder_time.lt.%s", formatTime(from), formatTime(to)), "").
		Neq("status", string(domain.TaskStatusDone)).
		Eq("completed", strconv.FormatBool(false)).
		Order("reminder_time", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, store.NewStoreError("task", "list_reminders", "failed to query reminder candidates", err)
	}
	return decodeTasks(body)
}

// GetByID implements store.TaskStore.GetByID
func (s *SupabaseTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	body, _, err := s.client.From(tasksTable).
		Select(taskColumns, "", false).
		Eq("id", id.String()).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, store.NewStoreError("task", "get", "failed to get task", err)
	}

	tasks, err := decodeTasks(body)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, store.ErrTaskNotFound
	}
	return tasks[0], nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
