package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/telemetry"
	"github.com/foxseedlab/vcdelay/internal/webhook"
)

var ErrNotificationChannelMissing = errors.New("notification channel is not configured")

type JoinNotice struct {
	GuildID               string
	NotificationChannelID string
	VoiceChannelID        string
	MemberID              string
	JoinTime              time.Time
	DelaySeconds          int
}

type LeaveNotice struct {
	GuildID               string
	NotificationChannelID string
	VoiceChannelID        string
	MemberID              string
	JoinTime              time.Time
	LeaveTime             time.Time
}

type Notifier interface {
	SendJoin(ctx context.Context, notice JoinNotice) error
	SendLeave(ctx context.Context, notice LeaveNotice) error
}

// DiscordNotifier posts notices as embeds and mirrors delivered ones to the event webhook.
type DiscordNotifier struct {
	discord discord.Client
	webhook webhook.Sender
	now     func() time.Time
}

func NewDiscordNotifier(dc discord.Client, wh webhook.Sender) *DiscordNotifier {
	return &DiscordNotifier{discord: dc, webhook: wh, now: time.Now}
}

func (n *DiscordNotifier) SendJoin(ctx context.Context, notice JoinNotice) error {
	if notice.NotificationChannelID == "" {
		return ErrNotificationChannelMissing
	}
	profile := n.discord.ResolveMemberProfile(notice.GuildID, notice.MemberID)
	embed := buildJoinEmbed(notice, profile, n.now())

	start := time.Now()
	if err := n.discord.SendChannelEmbed(notice.NotificationChannelID, embed); err != nil {
		return fmt.Errorf("send join embed to %s: %w", notice.NotificationChannelID, err)
	}
	telemetry.ObserveDispatch(time.Since(start).Seconds())
	telemetry.RecordNotificationSent("join")
	slog.Info("join notification sent", "guild_id", notice.GuildID, "channel_id", notice.VoiceChannelID, "user_id", notice.MemberID, "notification_channel_id", notice.NotificationChannelID)

	n.mirror(ctx, buildJoinPayload(notice, profile))
	return nil
}

func (n *DiscordNotifier) SendLeave(ctx context.Context, notice LeaveNotice) error {
	if notice.NotificationChannelID == "" {
		return ErrNotificationChannelMissing
	}
	profile := n.discord.ResolveMemberProfile(notice.GuildID, notice.MemberID)
	embed := buildLeaveEmbed(notice, profile)

	start := time.Now()
	if err := n.discord.SendChannelEmbed(notice.NotificationChannelID, embed); err != nil {
		return fmt.Errorf("send leave embed to %s: %w", notice.NotificationChannelID, err)
	}
	telemetry.ObserveDispatch(time.Since(start).Seconds())
	telemetry.RecordNotificationSent("leave")
	slog.Info("leave notification sent", "guild_id", notice.GuildID, "channel_id", notice.VoiceChannelID, "user_id", notice.MemberID, "stay_duration", notice.LeaveTime.Sub(notice.JoinTime).String())

	n.mirror(ctx, buildLeavePayload(notice, profile))
	return nil
}

// mirror is best effort; a webhook failure never fails the Discord delivery.
func (n *DiscordNotifier) mirror(ctx context.Context, payload webhook.PresenceEventPayload) {
	if n.webhook == nil {
		return
	}
	if err := n.webhook.SendPresenceEvent(ctx, payload); err != nil {
		slog.Warn("failed to mirror presence event to webhook", "error", err, "event", string(payload.Event), "guild_id", payload.GuildID)
	}
}
