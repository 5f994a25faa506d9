// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Delivery      DeliveryConfig      `yaml:"delivery"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// SchedulerConfig defines the delivery sweep settings.
type SchedulerConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	Concurrency   int           `yaml:"concurrency"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// DeliveryConfig defines the external render/deliver collaborator settings.
type DeliveryConfig struct {
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	RenderEndpoint string        `yaml:"render_endpoint"`
	Webhook        WebhookConfig `yaml:"webhook"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// NotificationsConfig defines alert notification targets.
type NotificationsConfig struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// RateLimitConfig defines outbound notification rate limiting.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applySchedulerDefaults(&cfg.Scheduler)
	applyDeliveryDefaults(&cfg.Delivery)
	applyNotificationsDefaults(&cfg.Notifications)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applySchedulerDefaults(s *SchedulerConfig) {
	if s.TickInterval == 0 {
		s.TickInterval = time.Minute
	}
	if s.Concurrency == 0 {
		s.Concurrency = 4
	}
	if s.ShutdownGrace == 0 {
		s.ShutdownGrace = 30 * time.Second
	}
}

func applyDeliveryDefaults(d *DeliveryConfig) {
	if d.AttemptTimeout == 0 {
		d.AttemptTimeout = 2 * time.Minute
	}
}

func applyNotificationsDefaults(n *NotificationsConfig) {
	if n.RateLimit.PerSecond == 0 {
		n.RateLimit.PerSecond = 1.0
	}
	if n.RateLimit.Burst == 0 {
		n.RateLimit.Burst = 5
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}

	if cfg.Scheduler.TickInterval < time.Second {
		errs = append(errs, fmt.Errorf(
			"scheduler.tick_interval must be at least 1s (got %s)",
			cfg.Scheduler.TickInterval,
		))
	}
	if cfg.Scheduler.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("scheduler.concurrency must be positive"))
	}

	if cfg.Delivery.Webhook.Enabled && cfg.Delivery.Webhook.URL == "" {
		errs = append(errs, fmt.Errorf("delivery.webhook.url is required when delivery.webhook.enabled"))
	}
	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("notifications.discord.webhook_url is required when notifications.discord.enabled"))
	}
	if cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL == "" {
		errs = append(errs, fmt.Errorf("notifications.webhook.url is required when notifications.webhook.enabled"))
	}

	return errors.Join(errs...)
}
