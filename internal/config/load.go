package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment variable, e.g.
// TASKFLOW_DATABASE_URL for database.url.
const envPrefix = "TASKFLOW"

// keys lists every configuration key so that environment variables resolve
// even when no config file or default mentions them.
var keys = []string{
	"server.port",
	"server.log_level",
	"database.driver",
	"database.url",
	"supabase.url",
	"supabase.service_role_key",
	"auth.jwt_secret",
	"jobs.worker_count",
	"jobs.queue_size",
	"jobs.timeout",
	"jobs.reminder_lookahead",
	"jobs.timezone",
	"jobs.scheduler_enabled",
	"jobs.recurring_schedule",
	"jobs.reminder_schedule",
	"calendar.enabled",
	"calendar.base_url",
	"calendar.client_id",
	"calendar.client_secret",
	"calendar.token_url",
	"calendar.keyring_dir",
	"calendar.rate_limit",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("jobs.worker_count", 4)
	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("jobs.timeout", "5m")
	v.SetDefault("jobs.reminder_lookahead", "1h")
	v.SetDefault("jobs.timezone", "UTC")
	v.SetDefault("jobs.scheduler_enabled", false)
	v.SetDefault("jobs.recurring_schedule", "0 5 0 * * *")
	v.SetDefault("jobs.reminder_schedule", "0 */15 * * * *")
	v.SetDefault("calendar.enabled", false)
	v.SetDefault("calendar.rate_limit", 5.0)
}

// Load reads configuration from a local .env file, an optional config.yaml
// and TASKFLOW_* environment variables, in increasing order of precedence.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-section rules the tags cannot
// express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Database.Driver == DriverSupabase {
		if c.Supabase.URL == "" || c.Supabase.ServiceRoleKey == "" {
			return errors.New(
				"config validation failed: supabase.url and supabase.service_role_key are required for the supabase driver",
			)
		}
	}

	if _, err := c.Jobs.Location(); err != nil {
		return fmt.Errorf("config validation failed: jobs.timezone: %w", err)
	}

	return nil
}
