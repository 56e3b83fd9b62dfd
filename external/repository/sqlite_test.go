package repository

import (
	"context"
	"testing"
	"time"

	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepository creates an in-memory SQLite repository with migrations applied.
func setupTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err, "Failed to create test database")

	err = RunSQLiteMigration(context.Background(), db)
	require.NoError(t, err, "Failed to run migrations on test database")

	repo := NewSQLiteRepository(db, 60)
	t.Cleanup(func() {
		require.NoError(t, repo.Close(), "Failed to close test database")
	})
	return repo
}

func TestSQLiteRepository_GetGuildSettingsMissing(t *testing.T) {
	repo := setupTestRepository(t)

	settings, err := repo.GetGuildSettings(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.Nil(t, settings, "Expected nil settings for unknown guild")
}

func TestSQLiteRepository_EnsureGuildSettingsKeepsExisting(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SetDelaySeconds(ctx, "guild-1", 120))
	require.NoError(t, repo.SetEnabled(ctx, "guild-1", false))
	require.NoError(t, repo.EnsureGuildSettings(ctx, "guild-1"))

	settings, err := repo.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.False(t, settings.Enabled)
	assert.Equal(t, 120, settings.DelaySeconds)
}

func TestSQLiteRepository_EnsureGuildSettingsSeedsDefaults(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.EnsureGuildSettings(ctx, "guild-1"))

	settings, err := repo.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.True(t, settings.Enabled)
	assert.Equal(t, 60, settings.DelaySeconds)
	assert.Empty(t, settings.NotificationChannelID)
	assert.False(t, settings.Notifiable(), "Expected guild without channel to be non-notifiable")
}

func TestSQLiteRepository_SetNotificationChannel(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SetNotificationChannel(ctx, "guild-1", "text-1"))

	settings, err := repo.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "text-1", settings.NotificationChannelID)
	assert.True(t, settings.Notifiable())
}

func recordScheduled(t *testing.T, repo *SQLiteRepository, userID string, joinTime time.Time) string {
	t.Helper()
	id, err := repo.RecordScheduled(context.Background(), repository.RecordScheduledInput{
		GuildID: "guild-1", UserID: userID, ChannelID: "vc-1", JoinTime: joinTime,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id, "Expected RecordScheduled to return the row id")
	return id
}

func entriesByID(t *testing.T, repo *SQLiteRepository) map[string]repository.NotificationLogEntry {
	t.Helper()
	entries, err := repo.ListRecent(context.Background(), "guild-1", 10)
	require.NoError(t, err)
	out := make(map[string]repository.NotificationLogEntry, len(entries))
	for _, e := range entries {
		out[e.ID] = e
	}
	return out
}

func TestSQLiteRepository_UpdateStatusTargetsEntry(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	clock := base
	repo.now = func() time.Time { return clock }
	first := recordScheduled(t, repo, "user-1", base)
	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: first, Status: repository.NotificationStatusCancelled,
	}))

	clock = base.Add(time.Minute)
	second := recordScheduled(t, repo, "user-1", clock)
	sentAt := clock.Add(time.Minute)
	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: second, Status: repository.NotificationStatusSent, NotificationTime: &sentAt,
	}))

	entries := entriesByID(t, repo)
	require.Len(t, entries, 2)
	assert.Equal(t, repository.NotificationStatusSent, entries[second].Status)
	require.NotNil(t, entries[second].NotificationTime)
	assert.True(t, entries[second].NotificationTime.Equal(sentAt))
	assert.Equal(t, repository.NotificationStatusCancelled, entries[first].Status)
	assert.Nil(t, entries[first].NotificationTime)
}

func TestSQLiteRepository_LateUpdateAfterRejoinKeepsRowsApart(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// the same member rejoined before the failure of the first dispatch was written
	repo.now = func() time.Time { return base }
	failed := recordScheduled(t, repo, "user-1", base)
	repo.now = func() time.Time { return base }
	rejoined := recordScheduled(t, repo, "user-1", base)

	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: failed, Status: repository.NotificationStatusFailed,
	}))
	entries := entriesByID(t, repo)
	assert.Equal(t, repository.NotificationStatusFailed, entries[failed].Status)
	assert.Equal(t, repository.NotificationStatusScheduled, entries[rejoined].Status)

	sentAt := base.Add(time.Minute)
	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: rejoined, Status: repository.NotificationStatusSent, NotificationTime: &sentAt,
	}))
	entries = entriesByID(t, repo)
	assert.Equal(t, repository.NotificationStatusFailed, entries[failed].Status)
	assert.Equal(t, repository.NotificationStatusSent, entries[rejoined].Status)
}

func TestSQLiteRepository_UpdateStatusLeavesTerminalRows(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	id := recordScheduled(t, repo, "user-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: id, Status: repository.NotificationStatusCancelled,
	}))
	require.NoError(t, repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: id, Status: repository.NotificationStatusFailed,
	}))

	assert.Equal(t, repository.NotificationStatusCancelled, entriesByID(t, repo)[id].Status)
}

func TestSQLiteRepository_UpdateStatusUnknownEntryIsNoop(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	err := repo.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: "00000000-0000-0000-0000-000000000000", Status: repository.NotificationStatusFailed,
	})
	require.NoError(t, err)

	entries, err := repo.ListRecent(ctx, "guild-1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteRepository_UpdateStatusRejectsInvalidInput(t *testing.T) {
	repo := setupTestRepository(t)

	err := repo.UpdateStatus(context.Background(), repository.UpdateStatusInput{
		EntryID: "some-id", Status: repository.NotificationStatusScheduled,
	})
	assert.Error(t, err)

	err = repo.UpdateStatus(context.Background(), repository.UpdateStatusInput{
		Status: repository.NotificationStatusSent,
	})
	assert.ErrorIs(t, err, repository.ErrMissingEntryID)
}

func TestSQLiteRepository_PruneOlderThan(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	repo.now = func() time.Time { return now.AddDate(0, 0, -40) }
	recordScheduled(t, repo, "user-1", now.AddDate(0, 0, -40))
	repo.now = func() time.Time { return now.AddDate(0, 0, -1) }
	recordScheduled(t, repo, "user-2", now.AddDate(0, 0, -1))

	repo.now = func() time.Time { return now }
	deleted, err := repo.PruneOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := repo.ListRecent(ctx, "guild-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-2", entries[0].UserID)

	_, err = repo.PruneOlderThan(ctx, 0)
	assert.Error(t, err, "Expected error for non-positive retention days")
}
