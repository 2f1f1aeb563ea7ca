package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/domain/recurrence"
	"github.com/taskflow/taskflow-api/internal/events"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/service"
	"github.com/taskflow/taskflow-api/internal/store"
	"github.com/taskflow/taskflow-api/internal/task"
)

const serviceName = "recurring"

// serviceImpl implements the Service interface
type serviceImpl struct {
	tasks      store.TaskStore
	recurrence recurrence.Service
	emitter    events.EventEmitter
	config     Config
	logger     *slog.Logger
}

// NewService creates a new recurrence engine.
// It returns an error if any of the required dependencies are nil.
// A nil emitter disables event publication.
func NewService(
	tasks store.TaskStore,
	recurrenceSvc recurrence.Service,
	emitter events.EventEmitter,
	config Config,
	logger *slog.Logger,
) (Service, error) {
	if tasks == nil {
		return nil, &service.ServiceError{Service: serviceName, Operation: "new", Err: errors.New("tasks cannot be nil")}
	}
	if recurrenceSvc == nil {
		return nil, &service.ServiceError{Service: serviceName, Operation: "new", Err: errors.New("recurrence cannot be nil")}
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		tasks:      tasks,
		recurrence: recurrenceSvc,
		emitter:    emitter,
		config:     config,
		logger:     logger.With(slog.String("component", "recurring_service")),
	}, nil
}

// GenerateNextInstance implements Service.GenerateNextInstance
func (s *serviceImpl) GenerateNextInstance(
	ctx context.Context,
	template *domain.Task,
	now time.Time,
) (Result, error) {
	if template == nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrValidation, ErrNilTemplate)
	}
	result := Result{TemplateID: template.ID}

	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("template_id", template.ID.String()))

	if err := template.ValidateTemplate(); err != nil {
		return result, err
	}

	latest, err := s.tasks.LatestInstanceAnchor(ctx, template.ID)
	if err != nil {
		return result, err
	}

	occ, err := s.recurrence.NextOccurrence(template, latest)
	if err != nil {
		return result, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	result.DueDate = occ.DueDate
	result.StartDate = occ.StartDate

	if template.RepeatUntil != nil && occ.Anchor.After(*template.RepeatUntil) {
		if err := s.tasks.DeactivateTemplate(ctx, template.ID, now); err != nil {
			return result, err
		}
		log.Info("recurring template reached repeat_until, deactivated",
			slog.Time("next_occurrence", occ.Anchor),
			slog.Time("repeat_until", *template.RepeatUntil))
		result.Outcome = OutcomeCycleComplete
		return result, nil
	}

	if !s.recurrence.IsDue(occ.Anchor, now) {
		result.Outcome = OutcomeNotDue
		return result, nil
	}

	// A template that fell behind skips to its newest due slot instead of
	// replaying the backlog one run at a time.
	if caughtUp, err := s.recurrence.LatestDue(template, occ, now); err != nil {
		return result, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	} else if caughtUp.Index != occ.Index {
		log.Info("recurring template behind schedule, skipping missed occurrences",
			slog.Int("skipped", caughtUp.Index-occ.Index),
			slog.Time("next_occurrence", caughtUp.Anchor))
		occ = caughtUp
		result.DueDate = occ.DueDate
		result.StartDate = occ.StartDate
	}

	exists, err := s.tasks.InstanceExists(ctx, template.ID, occ.Anchor)
	if err != nil {
		return result, err
	}
	if exists {
		result.Outcome = OutcomeAlreadyExists
		return result, nil
	}

	instance := template.NewInstance(occ.DueDate, occ.StartDate, now)
	if err := s.tasks.CreateInstance(ctx, instance); err != nil {
		if errors.Is(err, store.ErrInstanceExists) {
			log.Debug("instance created concurrently", slog.Time("occurrence", occ.Anchor))
			result.Outcome = OutcomeAlreadyExists
			return result, nil
		}
		return result, err
	}

	result.Outcome = OutcomeCreated
	result.InstanceID = &instance.ID
	s.emitCreated(ctx, template, instance, now)

	return result, nil
}

func (s *serviceImpl) emitCreated(ctx context.Context, template, instance *domain.Task, now time.Time) {
	event, err := events.NewEvent(events.TypeTaskInstanceCreated, events.TaskInstanceCreated{
		TaskID:     instance.ID,
		TemplateID: template.ID,
		UserID:     instance.UserID,
		Title:      instance.Title,
		DueDate:    instance.DueDate,
		StartDate:  instance.StartDate,
	}, now)
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit instance event",
			slog.String("task_id", instance.ID.String()),
			slog.String("error", err.Error()))
	}
}

// ProcessRecurringTasks implements Service.ProcessRecurringTasks
func (s *serviceImpl) ProcessRecurringTasks(ctx context.Context, now time.Time) (*Summary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	templates, err := s.tasks.ListRecurringTemplates(ctx)
	if err != nil {
		log.Error("failed to list recurring templates", slog.String("error", err.Error()))
		return nil, service.NewFatalQueryError(serviceName, "process_recurring_tasks", err)
	}

	// Each work item owns one slot, so no locking is needed.
	results := make([]Result, len(templates))
	failures := make([]error, len(templates))
	ran := make([]bool, len(templates))

	items := make([]task.Task, len(templates))
	for i, tpl := range templates {
		items[i] = task.NewFuncTask(tpl.ID, task.TypeRecurringTemplate, func(ctx context.Context) error {
			ran[i] = true
			results[i], failures[i] = s.GenerateNextInstance(ctx, tpl, now)
			return failures[i]
		})
	}

	batch := task.RunBatch(ctx, items, s.config.Pool, log, nil)

	summary := &Summary{
		CreatedTasks: []uuid.UUID{},
		Skipped:      []Skip{},
		Errors:       []service.TaskError{},
		Partial:      batch.Partial(),
	}
	for i, tpl := range templates {
		if !ran[i] {
			continue
		}
		if failures[i] != nil {
			te := service.NewTaskError(tpl.ID, failures[i])
			log.Warn("recurring template failed",
				slog.String("template_id", tpl.ID.String()),
				slog.String("kind", string(te.Kind)),
				slog.String("error", te.Message))
			summary.Errors = append(summary.Errors, te)
			continue
		}

		summary.ProcessedCount++
		if results[i].Outcome == OutcomeCreated {
			summary.CreatedTasks = append(summary.CreatedTasks, *results[i].InstanceID)
		} else {
			summary.Skipped = append(summary.Skipped, Skip{TaskID: tpl.ID, Reason: results[i].Outcome})
		}
	}

	log.Info("recurring tasks processed",
		slog.Int("templates", len(templates)),
		slog.Int("processed_count", summary.ProcessedCount),
		slog.Int("created", len(summary.CreatedTasks)),
		slog.Int("errors", len(summary.Errors)),
		slog.Bool("partial", summary.Partial))

	return summary, nil
}
