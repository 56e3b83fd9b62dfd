package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/vcdelay/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                          string        `env:"ENV" envDefault:"production"`
	LogLevel                     string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile                      string        `env:"LOG_FILE" envDefault:"./logs/bot.log"`
	DiscordToken                 string        `env:"DISCORD_TOKEN,required"`
	DatabaseDriver               string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabasePath                 string        `env:"DATABASE_PATH" envDefault:"./data/bot.db"`
	DatabaseURL                  string        `env:"DATABASE_URL"`
	DefaultDelaySeconds          int           `env:"DEFAULT_DELAY_SECONDS" envDefault:"60"`
	MinDelaySeconds              int           `env:"MIN_DELAY_SECONDS" envDefault:"5"`
	MaxDelaySeconds              int           `env:"MAX_DELAY_SECONDS" envDefault:"600"`
	NotificationLogRetentionDays int           `env:"NOTIFICATION_LOG_RETENTION_DAYS" envDefault:"30"`
	NotificationLogCleanupEvery  time.Duration `env:"NOTIFICATION_LOG_CLEANUP_INTERVAL" envDefault:"24h"`
	MetricsAddr                  string        `env:"METRICS_ADDR"`
	EventWebhookURL              string        `env:"EVENT_WEBHOOK_URL"`
	OTLPEndpoint                 string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                          raw.Env,
		LogLevel:                     raw.LogLevel,
		LogFile:                      raw.LogFile,
		DiscordToken:                 raw.DiscordToken,
		DatabaseDriver:               raw.DatabaseDriver,
		DatabasePath:                 raw.DatabasePath,
		DatabaseURL:                  raw.DatabaseURL,
		DefaultDelaySeconds:          raw.DefaultDelaySeconds,
		MinDelaySeconds:              raw.MinDelaySeconds,
		MaxDelaySeconds:              raw.MaxDelaySeconds,
		NotificationLogRetentionDays: raw.NotificationLogRetentionDays,
		NotificationLogCleanupEvery:  raw.NotificationLogCleanupEvery,
		MetricsAddr:                  raw.MetricsAddr,
		EventWebhookURL:              raw.EventWebhookURL,
		OTLPEndpoint:                 raw.OTLPEndpoint,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
