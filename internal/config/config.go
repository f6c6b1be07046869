package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Reminder ReminderConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ReminderConfig holds reminder scheduling configuration
type ReminderConfig struct {
	// RetryInterval is the fixed spacing between follow-up nudges.
	RetryInterval time.Duration
	// ScheduleWindow is how far ahead reminders are booked on a reschedule.
	ScheduleWindow time.Duration
	// ReconcileHorizon is the window the today view derives doses for.
	ReconcileHorizon time.Duration
	// TickInterval is how often the in-process gateway checks for due bookings.
	TickInterval time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	TokenKey string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	// Reminder defaults
	v.SetDefault("reminder.retryinterval", 10*time.Minute)
	v.SetDefault("reminder.schedulewindow", 7*24*time.Hour)
	v.SetDefault("reminder.reconcilehorizon", 24*time.Hour)
	v.SetDefault("reminder.tickinterval", 15*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Reminder
	v.BindEnv("reminder.retryinterval", "REMINDER_RETRY_INTERVAL")
	v.BindEnv("reminder.schedulewindow", "REMINDER_SCHEDULE_WINDOW")
	v.BindEnv("reminder.reconcilehorizon", "REMINDER_RECONCILE_HORIZON")
	v.BindEnv("reminder.tickinterval", "REMINDER_TICK_INTERVAL")

	// Auth
	v.BindEnv("auth.tokenkey", "TOKEN_KEY")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate required fields
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Auth.TokenKey == "" {
		return fmt.Errorf("auth.tokenkey is required")
	}

	if c.Reminder.RetryInterval <= 0 {
		return fmt.Errorf("reminder.retryinterval must be positive")
	}

	if c.Reminder.ScheduleWindow < c.Reminder.ReconcileHorizon {
		return fmt.Errorf("reminder.schedulewindow must cover the reconcile horizon")
	}

	return nil
}
