package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/vcdelay/internal/config"
	"github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/notifier"
	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/foxseedlab/vcdelay/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type eventKind string

const (
	eventJoin  eventKind = "join"
	eventLeave eventKind = "leave"
	eventMove  eventKind = "move"
)

func classify(event discord.VoiceStateEvent) (eventKind, bool) {
	switch {
	case event.BeforeChannelID == event.AfterChannelID:
		return "", false
	case event.BeforeChannelID == "":
		return eventJoin, true
	case event.AfterChannelID == "":
		return eventLeave, true
	default:
		return eventMove, true
	}
}

// Manager turns voice presence events into delayed join and leave notifications.
// Events and delayed dispatches are applied one at a time.
type Manager struct {
	cfg       *config.Config
	repo      repository.Repository
	discord   discord.Client
	notifier  notifier.Notifier
	registry  *Registry
	scheduler *Scheduler

	eventMu   sync.Mutex
	closed    bool
	botUserID string
	now       func() time.Time
	delayUnit time.Duration
}

func NewManager(cfg *config.Config, repo repository.Repository, dc discord.Client, n notifier.Notifier, registry *Registry, scheduler *Scheduler) *Manager {
	return &Manager{
		cfg:       cfg,
		repo:      repo,
		discord:   dc,
		notifier:  n,
		registry:  registry,
		scheduler: scheduler,
		now:       time.Now,
		delayUnit: time.Second,
	}
}

// SetBotUserID makes the manager ignore the bot's own voice activity.
func (m *Manager) SetBotUserID(id string) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()
	m.botUserID = id
}

func (m *Manager) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling voice state update", "panic", fmt.Sprint(r), "guild_id", event.GuildID, "user_id", event.UserID)
		}
	}()

	if m.closed {
		return
	}
	if event.UserIsBot || (m.botUserID != "" && event.UserID == m.botUserID) {
		return
	}
	kind, ok := classify(event)
	if !ok {
		return
	}
	telemetry.RecordPresenceEvent(string(kind))

	ctx, span := telemetry.StartSpan(context.Background(), "presence.voice_state_update",
		attribute.String("event_id", uuid.NewString()),
		attribute.String("kind", string(kind)),
		attribute.String("guild_id", event.GuildID),
		attribute.String("user_id", event.UserID),
	)
	defer span.End()
	slog.Info("voice state update received", "kind", string(kind), "guild_id", event.GuildID, "user_id", event.UserID, "before_channel_id", event.BeforeChannelID, "after_channel_id", event.AfterChannelID)

	switch kind {
	case eventJoin:
		m.handleJoin(ctx, event.GuildID, event.AfterChannelID, event.UserID)
	case eventLeave:
		m.handleLeave(ctx, event.GuildID, event.BeforeChannelID, event.UserID)
	case eventMove:
		m.handleLeave(ctx, event.GuildID, event.BeforeChannelID, event.UserID)
		m.handleJoin(ctx, event.GuildID, event.AfterChannelID, event.UserID)
	}
	telemetry.SetActiveSessions(m.registry.Len())
}

func (m *Manager) handleJoin(ctx context.Context, guildID, channelID, userID string) {
	settings, err := m.repo.GetGuildSettings(ctx, guildID)
	if err != nil {
		slog.Error("failed to load guild settings", "error", err, "guild_id", guildID)
		return
	}
	if !settings.Notifiable() {
		slog.Debug("notifications disabled or unconfigured; ignoring join", "guild_id", guildID, "channel_id", channelID)
		return
	}

	participants, err := m.discord.ListVoiceChannelParticipants(guildID, channelID)
	if err != nil {
		slog.Error("failed to list voice channel participants", "error", err, "guild_id", guildID, "channel_id", channelID)
		return
	}
	occupancy := m.registry.OccupancyAfterJoin(participants, userID)
	if occupancy != 1 {
		slog.Info("channel already occupied; no notification scheduled", "guild_id", guildID, "channel_id", channelID, "user_id", userID, "occupancy", occupancy)
		return
	}

	m.scheduler.Cancel(channelID)
	if stale, ok := m.registry.DestroySession(channelID); ok {
		slog.Warn("destroyed stale channel session before first join", "channel_id", channelID, "stale_user_id", stale.FirstMemberID)
	}

	sess := ChannelSession{
		ChannelID:     channelID,
		GuildID:       guildID,
		FirstMemberID: userID,
		JoinTime:      m.now(),
	}
	entryID, err := m.repo.RecordScheduled(ctx, repository.RecordScheduledInput{
		GuildID:   guildID,
		UserID:    userID,
		ChannelID: channelID,
		JoinTime:  sess.JoinTime,
	})
	if err != nil {
		telemetry.RecordLogWriteFailure()
		slog.Warn("failed to record scheduled notification", "error", err, "guild_id", guildID, "channel_id", channelID, "user_id", userID)
	}
	sess.LogEntryID = entryID
	if err := m.registry.CreateSession(sess); err != nil {
		slog.Error("failed to create channel session", "error", err, "channel_id", channelID)
		return
	}

	delaySeconds := m.cfg.ClampDelay(settings.DelaySeconds)
	if !m.scheduler.Schedule(channelID, sess.logKey(), m.delayedJoin(sess, delaySeconds), time.Duration(delaySeconds)*m.delayUnit) {
		m.registry.DestroySession(channelID)
	}
}

func (m *Manager) handleLeave(ctx context.Context, guildID, channelID, userID string) {
	participants, err := m.discord.ListVoiceChannelParticipants(guildID, channelID)
	if err != nil {
		slog.Error("failed to list voice channel participants", "error", err, "guild_id", guildID, "channel_id", channelID)
		return
	}
	occupancy := m.registry.OccupancyAfterLeave(participants, userID)
	if occupancy > 0 {
		slog.Debug("channel still occupied after leave", "channel_id", channelID, "occupancy", occupancy)
		return
	}

	m.scheduler.Cancel(channelID)
	sess, ok := m.registry.DestroySession(channelID)
	if !ok {
		return
	}
	slog.Info("channel session closed", "guild_id", guildID, "channel_id", channelID, "first_member_id", sess.FirstMemberID, "join_notification_sent", sess.JoinNotificationSent)
	if !sess.JoinNotificationSent {
		return
	}

	settings, err := m.repo.GetGuildSettings(ctx, guildID)
	if err != nil {
		slog.Error("failed to load guild settings", "error", err, "guild_id", guildID)
		return
	}
	if !settings.Notifiable() {
		return
	}
	if err := m.notifier.SendLeave(ctx, notifier.LeaveNotice{
		GuildID:               guildID,
		NotificationChannelID: settings.NotificationChannelID,
		VoiceChannelID:        channelID,
		MemberID:              userID,
		JoinTime:              sess.JoinTime,
		LeaveTime:             m.now(),
	}); err != nil {
		slog.Error("failed to send leave notification", "error", err, "guild_id", guildID, "channel_id", channelID, "user_id", userID)
	}
}

// delayedJoin re-checks that the first member is still in the channel before notifying.
// It runs outside eventMu so a slow send does not hold up presence events.
// The session is marked notified only if it is still the same occupied interval.
func (m *Manager) delayedJoin(sess ChannelSession, delaySeconds int) Work {
	return func(ctx context.Context) error {
		ctx, span := telemetry.StartSpan(ctx, "presence.delayed_join",
			attribute.String("guild_id", sess.GuildID),
			attribute.String("channel_id", sess.ChannelID),
			attribute.String("user_id", sess.FirstMemberID),
		)
		defer span.End()

		if !m.sessionCurrent(sess) {
			return ErrAbandoned
		}
		channelID, err := m.discord.GetUserVoiceChannelID(sess.GuildID, sess.FirstMemberID)
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("lookup voice channel of first member: %w", err)
		}
		if channelID != sess.ChannelID {
			return ErrAbandoned
		}

		settings, err := m.repo.GetGuildSettings(ctx, sess.GuildID)
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("load guild settings: %w", err)
		}
		if !settings.Notifiable() {
			return ErrSuppressed
		}
		if !m.sessionCurrent(sess) {
			return ErrAbandoned
		}

		if err := m.notifier.SendJoin(ctx, notifier.JoinNotice{
			GuildID:               sess.GuildID,
			NotificationChannelID: settings.NotificationChannelID,
			VoiceChannelID:        sess.ChannelID,
			MemberID:              sess.FirstMemberID,
			JoinTime:              sess.JoinTime,
			DelaySeconds:          delaySeconds,
		}); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		if err := m.registry.MarkJoinNotified(sess); err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				return err
			}
			slog.Info("channel session ended while join notice was in flight", "guild_id", sess.GuildID, "channel_id", sess.ChannelID, "user_id", sess.FirstMemberID)
		}

		if sess.LogEntryID == "" {
			return nil
		}
		sentAt := m.now()
		if err := m.repo.UpdateStatus(ctx, repository.UpdateStatusInput{
			EntryID:          sess.LogEntryID,
			Status:           repository.NotificationStatusSent,
			NotificationTime: &sentAt,
		}); err != nil {
			telemetry.RecordLogWriteFailure()
			slog.Warn("failed to record sent notification", "error", err, "entry_id", sess.LogEntryID, "guild_id", sess.GuildID, "channel_id", sess.ChannelID, "user_id", sess.FirstMemberID)
		}
		return nil
	}
}

func (m *Manager) sessionCurrent(sess ChannelSession) bool {
	current, ok := m.registry.GetSession(sess.ChannelID)
	return ok && current.sameInterval(sess)
}

// Shutdown stops accepting events, cancels every pending delayed notification
// and waits for in-flight ones. It is safe to call more than once.
func (m *Manager) Shutdown() {
	m.eventMu.Lock()
	m.closed = true
	m.eventMu.Unlock()

	cancelled := m.scheduler.CancelAll()
	m.scheduler.Wait()
	slog.Info("presence manager stopped", "cancelled_tasks", cancelled, "open_sessions", m.registry.Len())
}
