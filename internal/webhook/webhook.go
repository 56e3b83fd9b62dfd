package webhook

import "context"

const PresenceEventSchemaVersion = 1

type PresenceEventType string

const (
	PresenceEventJoin  PresenceEventType = "join"
	PresenceEventLeave PresenceEventType = "leave"
)

// PresenceEventPayload mirrors a delivered join or leave notice for external consumers.
type PresenceEventPayload struct {
	SchemaVersion       int               `json:"schema_version"`
	Event               PresenceEventType `json:"event"`
	GuildID             string            `json:"guild_id"`
	VoiceChannelID      string            `json:"voice_channel_id"`
	MemberID            string            `json:"member_id"`
	MemberDisplayName   string            `json:"member_display_name"`
	JoinAt              string            `json:"join_at"`
	LeaveAt             string            `json:"leave_at,omitempty"`
	StayDurationSeconds int64             `json:"stay_duration_seconds,omitempty"`
	DelaySeconds        int               `json:"delay_seconds,omitempty"`
}

type Sender interface {
	SendPresenceEvent(ctx context.Context, payload PresenceEventPayload) error
}
