package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/taskflow/taskflow-api/internal/config"
	"github.com/taskflow/taskflow-api/internal/domain/recurrence"
	"github.com/taskflow/taskflow-api/internal/events"
	"github.com/taskflow/taskflow-api/internal/platform/calendar"
	"github.com/taskflow/taskflow-api/internal/platform/postgres"
	"github.com/taskflow/taskflow-api/internal/platform/sqlite"
	"github.com/taskflow/taskflow-api/internal/platform/supabase"
	"github.com/taskflow/taskflow-api/internal/scheduler"
	"github.com/taskflow/taskflow-api/internal/service/auth"
	"github.com/taskflow/taskflow-api/internal/service/recurring"
	"github.com/taskflow/taskflow-api/internal/service/reminder"
	"github.com/taskflow/taskflow-api/internal/store"
	"github.com/taskflow/taskflow-api/internal/task"
)

// shutdownTimeout bounds how long cleanup waits for scheduled jobs and
// queued calendar pushes.
const shutdownTimeout = 10 * time.Second

// application holds the shared dependencies and releases them on cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	clock  func() time.Time

	tasks         store.TaskStore
	notifications store.NotificationStore

	jwtService auth.JWTService
	emitter    *events.InMemoryEventEmitter
	recurring  recurring.Service
	reminders  reminder.Service

	// Calendar pushes run on a long-lived pool fed by the event emitter.
	eventQueue *task.TaskQueue
	eventPool  *task.WorkerPool

	scheduler *scheduler.Scheduler

	closers []func() error
}

// newApplication wires stores, services and background workers from cfg.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		clock:  time.Now,
	}

	if err := app.openStores(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("application initialized")
	return app, nil
}

// openStores selects the storage backend from database.driver.
func (app *application) openStores(ctx context.Context) error {
	cfg := app.config

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := openPostgres(ctx, cfg.Database.URL, app.logger)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, db.Close)
		app.tasks = postgres.NewPostgresTaskStore(db, app.logger)
		app.notifications = postgres.NewPostgresNotificationStore(db, app.logger)

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		app.tasks = sqlite.NewSQLiteTaskStore(db, app.logger)
		app.notifications = sqlite.NewSQLiteNotificationStore(db, app.logger)

	case config.DriverSupabase:
		client, err := supabase.NewClient(cfg.Supabase)
		if err != nil {
			return err
		}
		app.tasks = supabase.NewSupabaseTaskStore(client, app.logger)
		app.notifications = supabase.NewSupabaseNotificationStore(client, app.logger)

	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	app.logger.Info("stores initialized", slog.String("driver", cfg.Database.Driver))
	return nil
}

// openPostgres opens a pgx-backed connection pool and verifies it.
func openPostgres(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

func (app *application) initServices() error {
	cfg := app.config

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	loc, err := cfg.Jobs.Location()
	if err != nil {
		return fmt.Errorf("invalid jobs timezone %q: %w", cfg.Jobs.Timezone, err)
	}
	recurrenceSvc, err := recurrence.NewService(loc)
	if err != nil {
		return fmt.Errorf("failed to create recurrence service: %w", err)
	}

	app.emitter = events.NewInMemoryEventEmitter(app.logger)
	if cfg.Calendar.Enabled {
		if err := app.initCalendarSync(); err != nil {
			return err
		}
	}

	pool := task.WorkerPoolConfig{
		WorkerCount: cfg.Jobs.WorkerCount,
		QueueSize:   cfg.Jobs.QueueSize,
	}

	app.recurring, err = recurring.NewService(app.tasks, recurrenceSvc, app.emitter, recurring.Config{
		Pool:    pool,
		Timeout: cfg.Jobs.Timeout,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create recurring task service: %w", err)
	}

	app.reminders, err = reminder.NewService(app.tasks, app.notifications, app.emitter, reminder.Config{
		Lookahead: cfg.Jobs.ReminderLookahead,
		Pool:      pool,
		Timeout:   cfg.Jobs.Timeout,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create reminder service: %w", err)
	}

	if cfg.Jobs.SchedulerEnabled {
		if err := app.initScheduler(loc); err != nil {
			return err
		}
	}

	return nil
}

// initCalendarSync subscribes the calendar push to instance events. Pushes
// run on their own pool so a slow calendar never holds up a job run.
func (app *application) initCalendarSync() error {
	cfg := app.config

	ring, err := calendar.OpenKeyring(cfg.Calendar)
	if err != nil {
		return fmt.Errorf("failed to open calendar keyring: %w", err)
	}
	tokens := calendar.NewKeyringTokenProvider(ring, calendar.OAuthConfig(cfg.Calendar), app.logger)
	client := calendar.NewClient(cfg.Calendar, tokens, app.logger)

	app.eventQueue = task.NewTaskQueue(cfg.Jobs.QueueSize, app.logger)
	app.eventPool = task.NewWorkerPool(app.eventQueue, task.WorkerPoolConfig{
		WorkerCount: 1,
		QueueSize:   cfg.Jobs.QueueSize,
	}, app.logger)
	app.eventPool.SetErrorHandler(func(t task.Task, err error) {
		app.logger.Warn("calendar sync failed",
			slog.String("event_id", t.ID().String()),
			slog.String("error", err.Error()))
	})
	app.eventPool.Start(context.Background())

	app.emitter.RegisterHandler(task.NewAsyncEventHandler(
		calendar.NewSyncHandler(client, app.logger),
		app.eventQueue,
		app.logger,
	))

	app.logger.Info("calendar sync enabled", slog.String("base_url", cfg.Calendar.BaseURL))
	return nil
}

func (app *application) initScheduler(loc *time.Location) error {
	app.scheduler = scheduler.New(loc, app.logger)

	if _, err := app.scheduler.Schedule(jobRecurring, app.config.Jobs.RecurringSchedule, func(ctx context.Context) error {
		_, err := app.recurring.ProcessRecurringTasks(ctx, app.clock())
		return err
	}); err != nil {
		return err
	}

	if _, err := app.scheduler.Schedule(jobReminders, app.config.Jobs.ReminderSchedule, func(ctx context.Context) error {
		_, err := app.reminders.ScanAndNotify(ctx, app.clock())
		return err
	}); err != nil {
		return err
	}

	return nil
}

// Run starts the scheduler, if enabled, and serves HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	if app.scheduler != nil {
		app.scheduler.Start()
		app.logger.Info("job scheduler started",
			slog.String("recurring_schedule", app.config.Jobs.RecurringSchedule),
			slog.String("reminder_schedule", app.config.Jobs.ReminderSchedule))
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runJob runs one batch job and writes its summary to out as JSON. A partial
// summary is still a success; only a failed batch query is an error.
func (app *application) runJob(ctx context.Context, name string, out io.Writer) error {
	now := app.clock()

	var summary any
	var err error
	switch name {
	case jobRecurring:
		summary, err = app.recurring.ProcessRecurringTasks(ctx, now)
	case jobReminders:
		summary, err = app.reminders.ScanAndNotify(ctx, now)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
	if err != nil {
		return fmt.Errorf("job %s failed: %w", name, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// cleanup stops background work and closes the stores.
func (app *application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.scheduler != nil {
		if err := app.scheduler.Stop(ctx); err != nil {
			app.logger.Warn("scheduled jobs did not stop in time", slog.String("error", err.Error()))
		}
	}

	if app.eventPool != nil {
		app.eventQueue.Close()
		drained := make(chan struct{})
		go func() {
			app.eventPool.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			app.eventPool.Stop()
			app.logger.Warn("abandoned pending calendar pushes",
				slog.Int("pending", len(app.eventQueue.Drain())))
		}
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("error closing resource", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
