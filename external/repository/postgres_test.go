package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgresRepository connects to TEST_PG_DSN and scopes every test to a fresh guild id.
func setupPostgresRepository(t *testing.T) (*PostgresRepository, *pgxpool.Pool, string) {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, RunPostgresMigration(ctx, pool), "Failed to run migrations on test database")

	guildID := "guild-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM notification_logs WHERE guild_id = $1`, guildID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM guild_settings WHERE guild_id = $1`, guildID)
		pool.Close()
	})
	return NewPostgresRepository(pool, 60).(*PostgresRepository), pool, guildID
}

func TestPostgresRepository_GuildSettings(t *testing.T) {
	repo, _, guildID := setupPostgresRepository(t)
	ctx := context.Background()

	settings, err := repo.GetGuildSettings(ctx, guildID)
	require.NoError(t, err)
	assert.Nil(t, settings)

	require.NoError(t, repo.EnsureGuildSettings(ctx, guildID))
	require.NoError(t, repo.SetDelaySeconds(ctx, guildID, 90))
	require.NoError(t, repo.SetNotificationChannel(ctx, guildID, "text-1"))
	require.NoError(t, repo.EnsureGuildSettings(ctx, guildID))

	settings, err = repo.GetGuildSettings(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.True(t, settings.Enabled)
	assert.Equal(t, 90, settings.DelaySeconds)
	assert.Equal(t, "text-1", settings.NotificationChannelID)
}

func TestPostgresRepository_UpdateStatusTargetsEntryWithEqualCreatedAt(t *testing.T) {
	repo, pool, guildID := setupPostgresRepository(t)
	ctx := context.Background()
	joinTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	input := repository.RecordScheduledInput{GuildID: guildID, UserID: "user-1", ChannelID: "vc-1", JoinTime: joinTime}
	older, err := repo.RecordScheduled(ctx, input)
	require.NoError(t, err)
	newer, err := repo.RecordScheduled(ctx, input)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE notification_logs SET created_at = $2 WHERE guild_id = $1`, guildID, joinTime)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: older, Status: repository.NotificationStatusFailed,
	}))
	sentAt := joinTime.Add(time.Minute)
	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: newer, Status: repository.NotificationStatusSent, NotificationTime: &sentAt,
	}))
	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: older, Status: repository.NotificationStatusCancelled,
	}))

	entries, err := repo.ListRecent(ctx, guildID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byID := make(map[string]repository.NotificationLogEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	assert.Equal(t, repository.NotificationStatusFailed, byID[older].Status)
	assert.Equal(t, repository.NotificationStatusSent, byID[newer].Status)
	require.NotNil(t, byID[newer].NotificationTime)
	assert.True(t, byID[newer].NotificationTime.Equal(sentAt))
}
