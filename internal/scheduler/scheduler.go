// Package scheduler triggers the batch jobs on cron schedules for
// deployments that have no external trigger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled run. The context is cancelled when the scheduler
// stops.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs with a leading seconds field, in a fixed
// location. A run still in progress when its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New creates a stopped scheduler.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"))
	adapter := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Schedule registers job under name.
func (s *Scheduler) Schedule(name, spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		log := s.logger.With(slog.String("job", name))
		start := time.Now()
		log.Info("scheduled job started")

		if err := job(s.ctx); err != nil {
			log.Error("scheduled job failed",
				slog.String("error", err.Error()),
				slog.Duration("duration", time.Since(start)))
			return
		}
		log.Info("scheduled job finished", slog.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return 0, fmt.Errorf("scheduling %s with %q: %w", name, spec, err)
	}
	return id, nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs, cancels running ones and waits for them to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next activation of the entry.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err.Error()}, keysAndValues...)...)
}
