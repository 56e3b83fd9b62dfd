package notifier

import (
	"fmt"
	"time"

	"github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/webhook"
)

const (
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c

	joinEmbedTitle  = "🎤 ボイスチャンネル参加通知"
	leaveEmbedTitle = "🚪 ボイスチャンネル退出通知"
	leaveFooter     = "入室通知が送信されたセッションのみ通知"
)

func buildJoinEmbed(notice JoinNotice, profile discord.MemberProfile, now time.Time) discord.Embed {
	return discord.Embed{
		Title:     joinEmbedTitle,
		Color:     colorGreen,
		Timestamp: now,
		Fields: []discord.EmbedField{
			{Name: "参加者", Value: mention(notice.MemberID), Inline: true},
			{Name: "チャンネル", Value: channelMention(notice.VoiceChannelID), Inline: true},
			{Name: "参加時刻", Value: relativeTimestamp(notice.JoinTime), Inline: true},
		},
		ThumbnailURL: profile.AvatarURL,
		Footer:       fmt.Sprintf("遅延時間: %d秒", notice.DelaySeconds),
	}
}

func buildLeaveEmbed(notice LeaveNotice, profile discord.MemberProfile) discord.Embed {
	return discord.Embed{
		Title:     leaveEmbedTitle,
		Color:     colorRed,
		Timestamp: notice.LeaveTime,
		Fields: []discord.EmbedField{
			{Name: "退出者", Value: mention(notice.MemberID), Inline: true},
			{Name: "チャンネル", Value: channelMention(notice.VoiceChannelID), Inline: true},
			{Name: "滞在時間", Value: FormatMinutesSeconds(notice.LeaveTime.Sub(notice.JoinTime)), Inline: true},
			{Name: "退出時刻", Value: relativeTimestamp(notice.LeaveTime), Inline: true},
		},
		ThumbnailURL: profile.AvatarURL,
		Footer:       leaveFooter,
	}
}

func buildJoinPayload(notice JoinNotice, profile discord.MemberProfile) webhook.PresenceEventPayload {
	return webhook.PresenceEventPayload{
		SchemaVersion:     webhook.PresenceEventSchemaVersion,
		Event:             webhook.PresenceEventJoin,
		GuildID:           notice.GuildID,
		VoiceChannelID:    notice.VoiceChannelID,
		MemberID:          notice.MemberID,
		MemberDisplayName: profile.DisplayName,
		JoinAt:            notice.JoinTime.UTC().Format(time.RFC3339),
		DelaySeconds:      notice.DelaySeconds,
	}
}

func buildLeavePayload(notice LeaveNotice, profile discord.MemberProfile) webhook.PresenceEventPayload {
	stay := int64(notice.LeaveTime.Sub(notice.JoinTime).Seconds())
	if stay < 0 {
		stay = 0
	}
	return webhook.PresenceEventPayload{
		SchemaVersion:       webhook.PresenceEventSchemaVersion,
		Event:               webhook.PresenceEventLeave,
		GuildID:             notice.GuildID,
		VoiceChannelID:      notice.VoiceChannelID,
		MemberID:            notice.MemberID,
		MemberDisplayName:   profile.DisplayName,
		JoinAt:              notice.JoinTime.UTC().Format(time.RFC3339),
		LeaveAt:             notice.LeaveTime.UTC().Format(time.RFC3339),
		StayDurationSeconds: stay,
	}
}

// FormatMinutesSeconds renders d as "N分M秒", truncating to whole seconds.
func FormatMinutesSeconds(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d分%d秒", total/60, total%60)
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func relativeTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
