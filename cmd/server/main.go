// Package main implements the entry point of the taskflow API server, which
// generates instances of recurring tasks and writes due-date reminders.
//
// Without flags it serves HTTP. With -run-job it runs one batch job and
// prints the summary as JSON; with -migrate it runs goose migrations
// against the Postgres schema; with -service-token it prints a bearer token
// for the job endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskflow/taskflow-api/internal/config"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
)

// Supported -run-job values.
const (
	jobRecurring = "recurring"
	jobReminders = "reminders"
)

// options are the parsed command line flags.
type options struct {
	migrate      string
	runJob       string
	serviceToken bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("taskflow-api", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.migrate, "migrate", "", "Run database migrations: up, down, status, version")
	fs.StringVar(&opts.runJob, "run-job", "", "Run one batch job and exit: recurring, reminders")
	fs.BoolVar(&opts.serviceToken, "service-token", false, "Print a service-role token for the job endpoints and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	modes := 0
	for _, set := range []bool{opts.migrate != "", opts.runJob != "", opts.serviceToken} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return options{}, fmt.Errorf("-migrate, -run-job and -service-token are mutually exclusive")
	}

	switch opts.runJob {
	case "", jobRecurring, jobReminders:
	default:
		return options{}, fmt.Errorf("unknown job %q: want %s or %s", opts.runJob, jobRecurring, jobReminders)
	}

	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		stop()
		log.Fatalf("taskflow-api: %v", err)
	}
}

// run loads configuration and dispatches to the selected mode. Command
// output goes to stdout; in command modes logs go to stderr so the output
// stays machine readable.
func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logOut := io.Writer(os.Stdout)
	if opts.migrate != "" || opts.runJob != "" || opts.serviceToken {
		logOut = os.Stderr
	}
	appLogger, err := logger.SetupWithWriter(cfg.Server, logOut)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("scheduler_enabled", cfg.Jobs.SchedulerEnabled),
		slog.Bool("calendar_enabled", cfg.Calendar.Enabled))

	switch {
	case opts.migrate != "":
		return runMigrations(ctx, cfg, opts.migrate, appLogger)
	case opts.serviceToken:
		return printServiceToken(ctx, cfg, stdout)
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	if opts.runJob != "" {
		return app.runJob(ctx, opts.runJob, stdout)
	}
	return app.Run(ctx)
}
