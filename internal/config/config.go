package config

import (
	"fmt"
	"time"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

type Config struct {
	Env                          string
	LogLevel                     string
	LogFile                      string
	DiscordToken                 string
	DatabaseDriver               string
	DatabasePath                 string
	DatabaseURL                  string
	DefaultDelaySeconds          int
	MinDelaySeconds              int
	MaxDelaySeconds              int
	NotificationLogRetentionDays int
	NotificationLogCleanupEvery  time.Duration
	MetricsAddr                  string
	EventWebhookURL              string
	OTLPEndpoint                 string
}

func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when DATABASE_DRIVER=%s", DatabaseDriverSQLite)
		}
	case DatabaseDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=%s", DatabaseDriverPostgres)
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DatabaseDriverSQLite, DatabaseDriverPostgres, c.DatabaseDriver)
	}
	if c.MinDelaySeconds <= 0 {
		return fmt.Errorf("MIN_DELAY_SECONDS must be positive, got %d", c.MinDelaySeconds)
	}
	if c.MinDelaySeconds > c.MaxDelaySeconds {
		return fmt.Errorf("MIN_DELAY_SECONDS (%d) must not exceed MAX_DELAY_SECONDS (%d)", c.MinDelaySeconds, c.MaxDelaySeconds)
	}
	if !c.DelayInRange(c.DefaultDelaySeconds) {
		return fmt.Errorf("DEFAULT_DELAY_SECONDS must be within [%d, %d], got %d", c.MinDelaySeconds, c.MaxDelaySeconds, c.DefaultDelaySeconds)
	}
	if c.NotificationLogRetentionDays < 1 {
		return fmt.Errorf("NOTIFICATION_LOG_RETENTION_DAYS must be at least 1, got %d", c.NotificationLogRetentionDays)
	}
	if c.NotificationLogCleanupEvery <= 0 {
		return fmt.Errorf("NOTIFICATION_LOG_CLEANUP_INTERVAL must be positive, got %s", c.NotificationLogCleanupEvery)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// DelayInRange reports whether seconds is an accepted per-guild delay.
func (c *Config) DelayInRange(seconds int) bool {
	return seconds >= c.MinDelaySeconds && seconds <= c.MaxDelaySeconds
}

// ClampDelay forces seconds into [MinDelaySeconds, MaxDelaySeconds].
func (c *Config) ClampDelay(seconds int) int {
	if seconds < c.MinDelaySeconds {
		return c.MinDelaySeconds
	}
	if seconds > c.MaxDelaySeconds {
		return c.MaxDelaySeconds
	}
	return seconds
}
