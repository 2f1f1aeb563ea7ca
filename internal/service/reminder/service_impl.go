package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taskflow/taskflow-api/internal/domain"
	"github.com/taskflow/taskflow-api/internal/events"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/service"
	"github.com/taskflow/taskflow-api/internal/store"
	"github.com/taskflow/taskflow-api/internal/task"
)

const serviceName = "reminder"

type scanOutcome struct {
	notification *domain.Notification
	skip         SkipReason
}

// serviceImpl implements the Service interface
type serviceImpl struct {
	tasks         store.TaskStore
	notifications store.NotificationStore
	emitter       events.EventEmitter
	config        Config
	logger        *slog.Logger
}

// NewService creates a new reminder scanner.
// It returns an error if either store is nil.
func NewService(
	tasks store.TaskStore,
	notifications store.NotificationStore,
	emitter events.EventEmitter,
	config Config,
	logger *slog.Logger,
) (Service, error) {
	if tasks == nil {
		return nil, &service.ServiceError{Service: serviceName, Operation: "new", Err: errors.New("tasks cannot be nil")}
	}
	if notifications == nil {
		return nil, &service.ServiceError{Service: serviceName, Operation: "new", Err: errors.New("notifications cannot be nil")}
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Lookahead <= 0 {
		config.Lookahead = DefaultLookahead
	}

	return &serviceImpl{
		tasks:         tasks,
		notifications: notifications,
		emitter:       emitter,
		config:        config,
		logger:        logger.With(slog.String("component", "reminder_service")),
	}, nil
}

// ScanAndNotify implements Service.ScanAndNotify
func (s *serviceImpl) ScanAndNotify(ctx context.Context, now time.Time) (*Summary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	from := now
	to := now.Add(s.config.Lookahead)

	candidates, err := s.tasks.ListReminderCandidates(ctx, from, to)
	if err != nil {
		log.Error("failed to list reminder candidates",
			slog.Time("from", from),
			slog.Time("to", to),
			slog.String("error", err.Error()))
		return nil, service.NewFatalQueryError(serviceName, "scan_and_notify", err)
	}

	outcomes := make([]scanOutcome, len(candidates))
	failures := make([]error, len(candidates))
	ran := make([]bool, len(candidates))

	items := make([]task.Task, len(candidates))
	for i, t := range candidates {
		items[i] = task.NewFuncTask(t.ID, task.TypeReminder, func(ctx context.Context) error {
			ran[i] = true
			outcomes[i], failures[i] = s.notify(ctx, t, now)
			return failures[i]
		})
	}

	batch := task.RunBatch(ctx, items, s.config.Pool, log, nil)

	summary := &Summary{
		Notifications: []NotificationSummary{},
		Skipped:       []Skip{},
		Errors:        []service.TaskError{},
		Partial:       batch.Partial(),
	}
	for i, t := range candidates {
		if !ran[i] {
			continue
		}
		if failures[i] != nil {
			te := service.NewTaskError(t.ID, failures[i])
			log.Warn("reminder failed",
				slog.String("task_id", t.ID.String()),
				slog.String("kind", string(te.Kind)),
				slog.String("error", te.Message))
			summary.Errors = append(summary.Errors, te)
			continue
		}

		summary.Processed++
		if n := outcomes[i].notification; n != nil {
			summary.Notifications = append(summary.Notifications, NotificationSummary{
				TaskID:         t.ID,
				NotificationID: n.ID,
				Message:        n.Message,
			})
		} else {
			summary.Skipped = append(summary.Skipped, Skip{TaskID: t.ID, Reason: outcomes[i].skip})
		}
	}

	log.Info("reminder scan finished",
		slog.Time("window_start", from),
		slog.Time("window_end", to),
		slog.Int("candidates", len(candidates)),
		slog.Int("notifications", len(summary.Notifications)),
		slog.Int("errors", len(summary.Errors)),
		slog.Bool("partial", summary.Partial))

	return summary, nil
}

// notify writes the reminder for one candidate unless it is done or was
// already notified for its current reminder time.
func (s *serviceImpl) notify(ctx context.Context, t *domain.Task, now time.Time) (scanOutcome, error) {
	if t.IsDone() {
		return scanOutcome{skip: SkipDone}, nil
	}

	n, err := domain.NewReminderNotification(t, now)
	if err != nil {
		return scanOutcome{}, err
	}

	exists, err := s.notifications.ReminderExists(ctx, t.ID, *n.ReminderTime)
	if err != nil {
		return scanOutcome{}, err
	}
	if exists {
		return scanOutcome{skip: SkipAlreadyNotified}, nil
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		if errors.Is(err, store.ErrReminderExists) {
			return scanOutcome{skip: SkipAlreadyNotified}, nil
		}
		return scanOutcome{}, err
	}

	s.emitCreated(ctx, n, now)
	return scanOutcome{notification: n}, nil
}

func (s *serviceImpl) emitCreated(ctx context.Context, n *domain.Notification, now time.Time) {
	event, err := events.NewEvent(events.TypeReminderCreated, events.ReminderCreated{
		NotificationID: n.ID,
		TaskID:         *n.TaskID,
		UserID:         n.UserID,
		ReminderTime:   *n.ReminderTime,
	}, now)
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit reminder event",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()))
	}
}
