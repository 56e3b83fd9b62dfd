package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db           *sql.DB
	defaultDelay int
	now          func() time.Time
}

func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewSQLiteRepository(db *sql.DB, defaultDelaySeconds int) *SQLiteRepository {
	return &SQLiteRepository{
		db:           db,
		defaultDelay: defaultDelaySeconds,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *SQLiteRepository) GetGuildSettings(ctx context.Context, guildID string) (*repository.GuildSettings, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT guild_id, enabled, delay_seconds, notification_channel_id, created_at, updated_at
		 FROM guild_settings WHERE guild_id = ?`,
		guildID)
	var s repository.GuildSettings
	var channelID sql.NullString
	err := row.Scan(&s.GuildID, &s.Enabled, &s.DelaySeconds, &channelID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.NotificationChannelID = channelID.String
	return &s, nil
}

func (r *SQLiteRepository) EnsureGuildSettings(ctx context.Context, guildID string) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, enabled, delay_seconds, created_at, updated_at)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT (guild_id) DO NOTHING`,
		guildID, r.defaultDelay, now, now)
	return err
}

func (r *SQLiteRepository) SetEnabled(ctx context.Context, guildID string, enabled bool) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, enabled, delay_seconds, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		guildID, enabled, r.defaultDelay, now, now)
	return err
}

func (r *SQLiteRepository) SetDelaySeconds(ctx context.Context, guildID string, seconds int) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, enabled, delay_seconds, created_at, updated_at)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET delay_seconds = excluded.delay_seconds, updated_at = excluded.updated_at`,
		guildID, seconds, now, now)
	return err
}

func (r *SQLiteRepository) SetNotificationChannel(ctx context.Context, guildID, channelID string) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, enabled, delay_seconds, notification_channel_id, created_at, updated_at)
		 VALUES (?, 1, ?, ?, ?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET notification_channel_id = excluded.notification_channel_id, updated_at = excluded.updated_at`,
		guildID, r.defaultDelay, channelID, now, now)
	return err
}

func (r *SQLiteRepository) RecordScheduled(ctx context.Context, input repository.RecordScheduledInput) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_logs (id, guild_id, user_id, channel_id, join_time, status, created_at)
		 VALUES (?, ?, ?, ?, ?, 'scheduled', ?)`,
		id, input.GuildID, input.UserID, input.ChannelID, input.JoinTime.UTC(), r.now())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, input repository.UpdateStatusInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	var notifiedAt any
	if input.NotificationTime != nil {
		notifiedAt = input.NotificationTime.UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_logs SET status = ?, notification_time = ?
		 WHERE id = ? AND status = 'scheduled'`,
		string(input.Status), notifiedAt, input.EntryID)
	return err
}

func (r *SQLiteRepository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("retention days must be at least 1, got %d", days)
	}
	cutoff := r.now().AddDate(0, 0, -days)
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, guildID string, limit int) ([]repository.NotificationLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guild_id, user_id, channel_id, join_time, notification_time, status, created_at
		 FROM notification_logs WHERE guild_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		guildID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()
	var list []repository.NotificationLogEntry
	for rows.Next() {
		var e repository.NotificationLogEntry
		var notifiedAt sql.NullTime
		var status string
		if err := rows.Scan(&e.ID, &e.GuildID, &e.UserID, &e.ChannelID, &e.JoinTime, &notifiedAt, &status, &e.CreatedAt); err != nil {
			return nil, err
		}
		if notifiedAt.Valid {
			t := notifiedAt.Time
			e.NotificationTime = &t
		}
		e.Status = repository.NotificationStatus(status)
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
