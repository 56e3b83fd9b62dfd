package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool         *pgxpool.Pool
	defaultDelay int
}

func NewPostgresRepository(pool *pgxpool.Pool, defaultDelaySeconds int) repository.Repository {
	return &PostgresRepository{pool: pool, defaultDelay: defaultDelaySeconds}
}

func (r *PostgresRepository) GetGuildSettings(ctx context.Context, guildID string) (*repository.GuildSettings, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT guild_id, enabled, delay_seconds, notification_channel_id, created_at, updated_at
		 FROM guild_settings WHERE guild_id = $1`,
		guildID)
	var s repository.GuildSettings
	var channelID *string
	err := row.Scan(&s.GuildID, &s.Enabled, &s.DelaySeconds, &channelID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if channelID != nil {
		s.NotificationChannelID = *channelID
	}
	return &s, nil
}

func (r *PostgresRepository) EnsureGuildSettings(ctx context.Context, guildID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guild_settings (guild_id, enabled, delay_seconds)
		 VALUES ($1, TRUE, $2)
		 ON CONFLICT (guild_id) DO NOTHING`,
		guildID, r.defaultDelay)
	return err
}

func (r *PostgresRepository) SetEnabled(ctx context.Context, guildID string, enabled bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guild_settings (guild_id, enabled, delay_seconds)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()`,
		guildID, enabled, r.defaultDelay)
	return err
}

func (r *PostgresRepository) SetDelaySeconds(ctx context.Context, guildID string, seconds int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guild_settings (guild_id, delay_seconds)
		 VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET delay_seconds = EXCLUDED.delay_seconds, updated_at = NOW()`,
		guildID, seconds)
	return err
}

func (r *PostgresRepository) SetNotificationChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guild_settings (guild_id, notification_channel_id, delay_seconds)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id) DO UPDATE SET notification_channel_id = EXCLUDED.notification_channel_id, updated_at = NOW()`,
		guildID, channelID, r.defaultDelay)
	return err
}

func (r *PostgresRepository) RecordScheduled(ctx context.Context, input repository.RecordScheduledInput) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_logs (id, guild_id, user_id, channel_id, join_time, status)
		 VALUES ($1, $2, $3, $4, $5, 'scheduled')`,
		id, input.GuildID, input.UserID, input.ChannelID, input.JoinTime)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, input repository.UpdateStatusInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_logs SET status = $2, notification_time = $3
		 WHERE id = $1 AND status = 'scheduled'`,
		input.EntryID, string(input.Status), input.NotificationTime)
	return err
}

func (r *PostgresRepository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("retention days must be at least 1, got %d", days)
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notification_logs WHERE created_at < NOW() - make_interval(days => $1)`,
		days)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, guildID string, limit int) ([]repository.NotificationLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, guild_id, user_id, channel_id, join_time, notification_time, status::text, created_at
		 FROM notification_logs WHERE guild_id = $1 ORDER BY created_at DESC LIMIT $2`,
		guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.NotificationLogEntry
	for rows.Next() {
		var e repository.NotificationLogEntry
		var notifiedAt *time.Time
		var status string
		if err := rows.Scan(&e.ID, &e.GuildID, &e.UserID, &e.ChannelID, &e.JoinTime, &notifiedAt, &status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.NotificationTime = notifiedAt
		e.Status = repository.NotificationStatus(status)
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
