package config

import "time"

// Database drivers supported by the application wiring.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Jobs     JobsConfig     `mapstructure:"jobs" validate:"required"`
	Calendar CalendarConfig `mapstructure:"calendar"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig selects the storage backend. URL is a Postgres connection
// string for the postgres driver and a file path (or ":memory:") for sqlite.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite supabase"`
	URL    string `mapstructure:"url" validate:"required_unless=Driver supabase"`
}

// SupabaseConfig holds the hosted PostgREST endpoint and the service-role key
// used by the batch jobs.
type SupabaseConfig struct {
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// JobsConfig tunes the recurring-task and reminder jobs.
type JobsConfig struct {
	WorkerCount       int           `mapstructure:"worker_count" validate:"gt=0,lte=64"`
	QueueSize         int           `mapstructure:"queue_size" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	ReminderLookahead time.Duration `mapstructure:"reminder_lookahead" validate:"gt=0"`
	Timezone          string        `mapstructure:"timezone" validate:"required"`
	SchedulerEnabled  bool          `mapstructure:"scheduler_enabled"`
	// Cron specs with a leading seconds field.
	RecurringSchedule string `mapstructure:"recurring_schedule" validate:"required"`
	ReminderSchedule  string `mapstructure:"reminder_schedule" validate:"required"`
}

// CalendarConfig configures best-effort pushing of new instances to the
// owner's external calendar.
type CalendarConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BaseURL      string `mapstructure:"base_url" validate:"required_if=Enabled true"`
	ClientID     string `mapstructure:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `mapstructure:"client_secret" validate:"required_if=Enabled true"`
	TokenURL     string `mapstructure:"token_url" validate:"required_if=Enabled true"`
	KeyringDir   string `mapstructure:"keyring_dir"`
	// Requests per second allowed against the calendar API.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// Location resolves the configured job timezone.
func (c JobsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
