package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/foxseedlab/vcdelay/internal/telemetry"
)

// Job periodically deletes notification log rows older than the retention window.
type Job struct {
	logs     repository.NotificationLogRepository
	days     int
	interval time.Duration
}

func NewJob(logs repository.NotificationLogRepository, days int, interval time.Duration) *Job {
	return &Job{logs: logs, days: days, interval: interval}
}

// Start runs one cleanup immediately and then one per interval until ctx is done.
func (j *Job) Start(ctx context.Context) {
	slog.Info("retention job starting", "keep_days", j.days, "interval", j.interval.String())
	if _, err := j.RunOnce(ctx); err != nil {
		slog.Warn("retention cleanup failed", "error", err)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("retention job stopped")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				slog.Warn("retention cleanup failed", "error", err)
			}
		}
	}
}

func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := j.logs.PruneOlderThan(ctx, j.days)
	if err != nil {
		return 0, fmt.Errorf("prune notification logs older than %d days: %w", j.days, err)
	}
	telemetry.RecordPruned(deleted)
	if deleted > 0 {
		slog.Info("notification logs pruned", "deleted", deleted, "keep_days", j.days)
	}
	return deleted, nil
}
