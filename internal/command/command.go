package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/vcdelay/internal/config"
	"github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/foxseedlab/vcdelay/internal/session"
)

const (
	commandTimeout  = 5 * time.Second
	recentLogLimit  = 20
	updatedAtLayout = "2006-01-02 15:04"
)

// Handler serves the per-guild settings slash commands.
type Handler struct {
	cfg      *config.Config
	repo     repository.Repository
	discord  discord.Client
	registry *session.Registry
}

func NewHandler(cfg *config.Config, repo repository.Repository, dc discord.Client, registry *session.Registry) *Handler {
	return &Handler{cfg: cfg, repo: repo, discord: dc, registry: registry}
}

func Definitions(cfg *config.Config) []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{
			Name:        commandSetDelay,
			Description: slashCommandSetDelayDescription,
			Options: []discord.SlashCommandOptionDefinition{{
				Name:        optionSeconds,
				Description: optionSecondsDescription(cfg.MinDelaySeconds, cfg.MaxDelaySeconds),
				Type:        discord.OptionTypeInteger,
				Required:    true,
				MinValue:    cfg.MinDelaySeconds,
				MaxValue:    cfg.MaxDelaySeconds,
			}},
			RequireManageChannels: true,
		},
		{
			Name:        commandSetChannel,
			Description: slashCommandSetChannelDescription,
			Options: []discord.SlashCommandOptionDefinition{{
				Name:        optionChannel,
				Description: optionChannelDescription,
				Type:        discord.OptionTypeTextChannel,
				Required:    true,
			}},
			RequireManageChannels: true,
		},
		{Name: commandEnable, Description: slashCommandEnableDescription, RequireManageChannels: true},
		{Name: commandDisable, Description: slashCommandDisableDescription, RequireManageChannels: true},
		{Name: commandStatus, Description: slashCommandStatusDescription, RequireManageChannels: true},
		{Name: commandHelp, Description: slashCommandHelpDescription},
	}
}

func (h *Handler) HandleSlashCommand(event discord.SlashCommandEvent) {
	slog.Info("slash command received", "command", event.CommandName, "guild_id", event.GuildID, "user_id", event.UserID)
	if event.GuildID == "" {
		h.respond(event, messageEphemeralGuildOnly)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch event.CommandName {
	case commandSetDelay:
		h.handleSetDelay(ctx, event)
	case commandSetChannel:
		h.handleSetChannel(ctx, event)
	case commandEnable:
		h.handleSetEnabled(ctx, event, true)
	case commandDisable:
		h.handleSetEnabled(ctx, event, false)
	case commandStatus:
		h.handleStatus(ctx, event)
	case commandHelp:
		h.respondEmbed(event, h.helpEmbed())
	default:
		h.respond(event, messageEphemeralUnknownCommand)
	}
}

func (h *Handler) handleSetDelay(ctx context.Context, event discord.SlashCommandEvent) {
	seconds, ok := event.IntOptions[optionSeconds]
	if !ok {
		h.respond(event, delayOutOfRangeMessage(h.cfg.MinDelaySeconds, h.cfg.MaxDelaySeconds))
		return
	}
	if err := repository.ValidateDelaySeconds(int(seconds), h.cfg.MinDelaySeconds, h.cfg.MaxDelaySeconds); err != nil {
		h.respond(event, delayOutOfRangeMessage(h.cfg.MinDelaySeconds, h.cfg.MaxDelaySeconds))
		return
	}
	if err := h.repo.SetDelaySeconds(ctx, event.GuildID, int(seconds)); err != nil {
		slog.Error("failed to update delay", "error", err, "guild_id", event.GuildID, "seconds", seconds)
		h.respond(event, messageEphemeralUpdateFailed)
		return
	}
	slog.Info("delay updated", "guild_id", event.GuildID, "seconds", seconds)
	h.respond(event, delayUpdatedMessage(int(seconds)))
}

func (h *Handler) handleSetChannel(ctx context.Context, event discord.SlashCommandEvent) {
	channelID := event.ChannelOptions[optionChannel]
	if channelID == "" {
		h.respond(event, messageEphemeralChannelMissing)
		return
	}
	allowed, err := h.discord.CanPostEmbeds(channelID)
	if err != nil {
		slog.Warn("failed to check channel permissions", "error", err, "guild_id", event.GuildID, "channel_id", channelID)
	}
	if err != nil || !allowed {
		h.respond(event, channelPermissionMissingMessage(channelID))
		return
	}
	if err := h.repo.SetNotificationChannel(ctx, event.GuildID, channelID); err != nil {
		slog.Error("failed to update notification channel", "error", err, "guild_id", event.GuildID, "channel_id", channelID)
		h.respond(event, messageEphemeralUpdateFailed)
		return
	}
	slog.Info("notification channel updated", "guild_id", event.GuildID, "channel_id", channelID)
	h.respond(event, channelUpdatedMessage(channelID))
}

func (h *Handler) handleSetEnabled(ctx context.Context, event discord.SlashCommandEvent, enabled bool) {
	if err := h.repo.SetEnabled(ctx, event.GuildID, enabled); err != nil {
		slog.Error("failed to update enabled flag", "error", err, "guild_id", event.GuildID, "enabled", enabled)
		h.respond(event, messageEphemeralUpdateFailed)
		return
	}
	slog.Info("notifications toggled", "guild_id", event.GuildID, "enabled", enabled)
	if enabled {
		h.respond(event, messageEphemeralEnabled)
		return
	}
	h.respond(event, messageEphemeralDisabled)
}

func (h *Handler) handleStatus(ctx context.Context, event discord.SlashCommandEvent) {
	settings, err := h.repo.GetGuildSettings(ctx, event.GuildID)
	if err != nil {
		slog.Error("failed to load guild settings", "error", err, "guild_id", event.GuildID)
		h.respond(event, messageEphemeralLoadFailed)
		return
	}
	recent, err := h.repo.ListRecent(ctx, event.GuildID, recentLogLimit)
	if err != nil {
		slog.Warn("failed to load recent notification log", "error", err, "guild_id", event.GuildID)
		recent = nil
	}
	h.respondEmbed(event, h.statusEmbed(settings, recent, len(h.registry.SessionsInGuild(event.GuildID))))
}

func (h *Handler) statusEmbed(settings *repository.GuildSettings, recent []repository.NotificationLogEntry, activeSessions int) discord.Embed {
	embed := discord.Embed{
		Title:  statusEmbedTitle,
		Color:  colorBlue,
		Footer: statusEmbedFooter,
	}
	if settings == nil {
		embed.Fields = []discord.EmbedField{{Name: "設定状況", Value: statusNeedsSetup}}
		return embed
	}

	state := "🔇 無効"
	if settings.Enabled {
		state = "✅ 有効"
	}
	channel := statusUnset
	if settings.NotificationChannelID != "" {
		channel = fmt.Sprintf("<#%s>", settings.NotificationChannelID)
	}
	embed.Fields = []discord.EmbedField{
		{Name: "通知状態", Value: state, Inline: true},
		{Name: "遅延時間", Value: delayFieldValue(settings.DelaySeconds), Inline: true},
		{Name: "通知チャンネル", Value: channel, Inline: true},
		{Name: "監視中のボイスチャンネル", Value: fmt.Sprintf("%d", activeSessions), Inline: true},
		{Name: "直近の通知", Value: summarizeRecent(recent), Inline: true},
		{Name: "最終更新", Value: settings.UpdatedAt.UTC().Format(updatedAtLayout) + " (UTC)"},
	}
	return embed
}

func summarizeRecent(entries []repository.NotificationLogEntry) string {
	if len(entries) == 0 {
		return "なし"
	}
	counts := make(map[repository.NotificationStatus]int, 4)
	for _, e := range entries {
		counts[e.Status]++
	}
	return fmt.Sprintf("送信 %d / 取消 %d / 失敗 %d / 待機 %d",
		counts[repository.NotificationStatusSent],
		counts[repository.NotificationStatusCancelled],
		counts[repository.NotificationStatusFailed],
		counts[repository.NotificationStatusScheduled],
	)
}

func (h *Handler) helpEmbed() discord.Embed {
	return discord.Embed{
		Title:       helpEmbedTitle,
		Description: helpEmbedDescription,
		Color:       colorGreen,
		Fields: []discord.EmbedField{
			{Name: "🔧 利用可能コマンド", Value: helpCommandList(h.cfg.MinDelaySeconds, h.cfg.MaxDelaySeconds)},
			{Name: "💡 使い方", Value: helpEmbedUsage},
			{Name: "⚠️ 権限について", Value: helpEmbedPermissions},
		},
		Footer: helpEmbedFooter,
	}
}

func (h *Handler) respond(event discord.SlashCommandEvent, content string) {
	if event.RespondEphemeral == nil {
		return
	}
	if err := event.RespondEphemeral(content); err != nil {
		slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName)
	}
}

func (h *Handler) respondEmbed(event discord.SlashCommandEvent, embed discord.Embed) {
	if event.RespondEphemeralEmbed == nil {
		return
	}
	if err := event.RespondEphemeralEmbed(embed); err != nil {
		slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName)
	}
}
