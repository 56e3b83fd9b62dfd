package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDelay   = errors.New("delay seconds out of range")
	ErrMissingEntryID = errors.New("notification log entry id is required")
)

type RecordScheduledInput struct {
	GuildID   string
	UserID    string
	ChannelID string
	JoinTime  time.Time
}

// UpdateStatusInput addresses the exact row returned by RecordScheduled.
type UpdateStatusInput struct {
	EntryID          string
	Status           NotificationStatus
	NotificationTime *time.Time
}

func (in UpdateStatusInput) Validate() error {
	if in.EntryID == "" {
		return ErrMissingEntryID
	}
	if !in.Status.Terminal() {
		return fmt.Errorf("status %q is not a terminal notification status", in.Status)
	}
	return nil
}

type SettingsRepository interface {
	// GetGuildSettings returns nil when the guild has never been configured.
	GetGuildSettings(ctx context.Context, guildID string) (*GuildSettings, error)
	// EnsureGuildSettings creates an enabled row with the default delay when none exists.
	EnsureGuildSettings(ctx context.Context, guildID string) error
	SetEnabled(ctx context.Context, guildID string, enabled bool) error
	SetDelaySeconds(ctx context.Context, guildID string, seconds int) error
	SetNotificationChannel(ctx context.Context, guildID, channelID string) error
}

type NotificationLogRepository interface {
	// RecordScheduled inserts a scheduled row and returns its id.
	RecordScheduled(ctx context.Context, input RecordScheduledInput) (string, error)
	// UpdateStatus moves the row to a terminal status if it is still scheduled.
	UpdateStatus(ctx context.Context, input UpdateStatusInput) error
	PruneOlderThan(ctx context.Context, days int) (int64, error)
	ListRecent(ctx context.Context, guildID string, limit int) ([]NotificationLogEntry, error)
}

type Repository interface {
	SettingsRepository
	NotificationLogRepository
	Close() error
}

// ValidateDelaySeconds checks seconds against the accepted [minSeconds, maxSeconds] range.
func ValidateDelaySeconds(seconds, minSeconds, maxSeconds int) error {
	if seconds < minSeconds || seconds > maxSeconds {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDelay, seconds, minSeconds, maxSeconds)
	}
	return nil
}
