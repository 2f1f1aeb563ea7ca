package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/events"
	"github.com/taskflow/taskflow-api/internal/store"
)

// memTaskStore serves reminder candidates from a fixed task list, applying
// the same filter as the database backends.
type memTaskStore struct {
	tasks []*domain.Task

	ListReminderCandidatesFn func(ctx context.Context, from, to time.Time) ([]*domain.Task, error)
}

var _ store.TaskStore = (*memTaskStore)(nil)

func (s *memTaskStore) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	if s.ListReminderCandidatesFn != nil {
		return s.ListReminderCandidatesFn(ctx, from, to)
	}
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.ReminderTime == nil || t.IsDone() {
			continue
		}
		if t.ReminderTime.Before(from) || !t.ReminderTime.Before(to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReminderTime.Before(*out[j].ReminderTime) })
	return out, nil
}

func (s *memTaskStore) ListRecurringTemplates(context.Context) ([]*domain.Task, error) {
	return nil, nil
}

func (s *memTaskStore) LatestInstanceAnchor(context.Context, uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (s *memTaskStore) InstanceExists(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func (s *memTaskStore) CreateInstance(context.Context, *domain.Task) error {
	return nil
}

func (s *memTaskStore) DeactivateTemplate(context.Context, uuid.UUID, time.Time) error {
	return nil
}

func (s *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, store.ErrTaskNotFound
}

// memNotificationStore keeps notifications in memory and enforces the
// (task_id, reminder_time) uniqueness of reminders.
type memNotificationStore struct {
	mu            sync.Mutex
	notifications []*domain.Notification

	ReminderExistsFn func(ctx context.Context, taskID uuid.UUID, reminderTime time.Time) (bool, error)
	CreateFn         func(ctx context.Context, n *domain.Notification) error
}

var _ store.NotificationStore = (*memNotificationStore)(nil)

func (s *memNotificationStore) ReminderExists(ctx context.Context, taskID uuid.UUID, reminderTime time.Time) (bool, error) {
	if s.ReminderExistsFn != nil {
		return s.ReminderExistsFn(ctx, taskID, reminderTime)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existsLocked(taskID, reminderTime), nil
}

func (s *memNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Type == domain.NotificationTypeReminder && s.existsLocked(*n.TaskID, *n.ReminderTime) {
		return store.ErrReminderExists
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *memNotificationStore) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memNotificationStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return store.ErrNotificationNotFound
}

func (s *memNotificationStore) forTask(taskID uuid.UUID) []*domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.TaskID != nil && *n.TaskID == taskID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memNotificationStore) existsLocked(taskID uuid.UUID, reminderTime time.Time) bool {
	for _, n := range s.notifications {
		if n.Type != domain.NotificationTypeReminder || n.TaskID == nil || n.ReminderTime == nil {
			continue
		}
		if *n.TaskID == taskID && n.ReminderTime.Equal(reminderTime) {
			return true
		}
	}
	return false
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.Event
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}
