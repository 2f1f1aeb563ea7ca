package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/taskflow/taskflow-api/internal/config"
	"github.com/taskflow/taskflow-api/internal/platform/postgres"
	"github.com/taskflow/taskflow-api/internal/platform/sqlite"
)

// Supported -migrate commands.
const (
	migrateUp      = "up"
	migrateDown    = "down"
	migrateStatus  = "status"
	migrateVersion = "version"
)

// slogGooseLogger routes goose output to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs without exiting; the error reaches main through the return
// value of the goose call.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// runMigrations applies a migration command to the configured database.
// Postgres uses the embedded goose migrations. SQLite migrates itself on
// open, so only up, status and version apply to it.
func runMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	log := logger.With(
		slog.String("component", "migrations"),
		slog.String("command", command),
		slog.String("correlation_id", uuid.New().String()),
	)

	switch command {
	case migrateUp, migrateDown, migrateStatus, migrateVersion:
	default:
		return fmt.Errorf("unknown migrate command %q: want up, down, status or version", command)
	}

	start := time.Now()
	var err error
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		err = runPostgresMigrations(ctx, cfg.Database.URL, command, log)
	case config.DriverSQLite:
		err = runSQLiteMigrations(ctx, cfg.Database.URL, command, log)
	default:
		err = fmt.Errorf("migrations are not managed for driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return err
	}

	log.Info("migration command completed", slog.Duration("duration", time.Since(start)))
	return nil
}

func runPostgresMigrations(ctx context.Context, url, command string, log *slog.Logger) error {
	db, err := openPostgres(ctx, url, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}()

	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetBaseFS(postgres.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	switch command {
	case migrateUp:
		err = goose.UpContext(ctx, db, postgres.MigrationsDir)
	case migrateDown:
		err = goose.DownContext(ctx, db, postgres.MigrationsDir)
	case migrateStatus:
		err = goose.StatusContext(ctx, db, postgres.MigrationsDir)
	case migrateVersion:
		var version int64
		version, err = goose.GetDBVersionContext(ctx, db)
		if err == nil {
			log.Info("current schema version", slog.Int64("version", version))
		}
	}
	if err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}
	return nil
}

func runSQLiteMigrations(ctx context.Context, path, command string, log *slog.Logger) error {
	if command == migrateDown {
		return fmt.Errorf("sqlite schema does not support down migrations")
	}

	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	defer func() { _ = db.Close() }()

	version, err := sqlite.SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	log.Info("current schema version", slog.Int("version", version))
	return nil
}
