package recurring

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/events"
	"github.com/taskflow/taskflow-api/internal/store"
)

// memTaskStore is an in-memory store.TaskStore. The Fn fields, when set,
// replace the corresponding method.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	ListRecurringTemplatesFn func(ctx context.Context) ([]*domain.Task, error)
	InstanceExistsFn         func(ctx context.Context, templateID uuid.UUID, anchor time.Time) (bool, error)
	CreateInstanceFn         func(ctx context.Context, instance *domain.Task) error
}

var _ store.TaskStore = (*memTaskStore)(nil)

func newMemTaskStore(tasks ...*domain.Task) *memTaskStore {
	s := &memTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *memTaskStore) ListRecurringTemplates(ctx context.Context) ([]*domain.Task, error) {
	if s.ListRecurringTemplatesFn != nil {
		return s.ListRecurringTemplatesFn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Task
	for _, t := range s.tasks {
		if t.IsTemplate() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTaskStore) LatestInstanceAnchor(_ context.Context, templateID uuid.UUID) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *time.Time
	for _, inst := range s.instancesLocked(templateID) {
		anchor, ok := inst.ScheduleAnchor()
		if !ok {
			continue
		}
		if latest == nil || anchor.After(*latest) {
			a := anchor
			latest = &a
		}
	}
	return latest, nil
}

func (s *memTaskStore) InstanceExists(ctx context.Context, templateID uuid.UUID, anchor time.Time) (bool, error) {
	if s.InstanceExistsFn != nil {
		return s.InstanceExistsFn(ctx, templateID, anchor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existsLocked(templateID, anchor), nil
}

func (s *memTaskStore) CreateInstance(ctx context.Context, instance *domain.Task) error {
	if s.CreateInstanceFn != nil {
		return s.CreateInstanceFn(ctx, instance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, _ := instance.ScheduleAnchor()
	if s.existsLocked(*instance.ParentRecurringTaskID, anchor) {
		return store.ErrInstanceExists
	}
	s.tasks[instance.ID] = instance
	return nil
}

func (s *memTaskStore) DeactivateTemplate(_ context.Context, templateID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[templateID]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Recurring = false
	t.UpdatedAt = now
	return nil
}

func (s *memTaskStore) ListReminderCandidates(context.Context, time.Time, time.Time) ([]*domain.Task, error) {
	return nil, nil
}

func (s *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t, nil
}

// instances returns a snapshot of the template's instances.
func (s *memTaskStore) instances(templateID uuid.UUID) []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instancesLocked(templateID)
}

func (s *memTaskStore) instancesLocked(templateID uuid.UUID) []*domain.Task {
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.ParentRecurringTaskID != nil && *t.ParentRecurringTaskID == templateID {
			out = append(out, t)
		}
	}
	return out
}

func (s *memTaskStore) existsLocked(templateID uuid.UUID, anchor time.Time) bool {
	for _, inst := range s.instancesLocked(templateID) {
		if a, ok := inst.ScheduleAnchor(); ok && a.Equal(anchor) {
			return true
		}
	}
	return false
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}
