package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxseedlab/vcdelay/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// initLogger writes JSON logs to stdout and, when LOG_FILE is set, to a rotating file.
func initLogger(cfg *config.Config) func() {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			slog.Warn("failed to create log directory; logging to stdout only", "error", err, "path", cfg.LogFile)
		} else {
			lj := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
			}
			w = io.MultiWriter(os.Stdout, lj)
			closeFn = func() { _ = lj.Close() }
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
	return closeFn
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
