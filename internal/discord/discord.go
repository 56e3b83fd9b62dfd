package discord

import (
	"context"
	"time"
)

type OptionType int

const (
	OptionTypeInteger OptionType = iota + 1
	OptionTypeTextChannel
)

type SlashCommandOptionDefinition struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	MinValue    int
	MaxValue    int
}

type SlashCommandDefinition struct {
	Name                  string
	Description           string
	Options               []SlashCommandOptionDefinition
	RequireManageChannels bool
}

type SlashCommandEvent struct {
	GuildID               string
	ChannelID             string
	CommandName           string
	UserID                string
	IntOptions            map[string]int64
	ChannelOptions        map[string]string
	RespondEphemeral      func(content string) error
	RespondEphemeralEmbed func(embed Embed) error
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type VoiceParticipant struct {
	UserID string
	IsBot  bool
}

type MemberProfile struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title        string
	Description  string
	Color        int
	Timestamp    time.Time
	Fields       []EmbedField
	ThumbnailURL string
	Footer       string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	SendChannelEmbed(channelID string, embed Embed) error
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	RegisterGuildAvailableHandler(handler func(guildID, guildName string))
	UpsertSlashCommands(guildID string, defs []SlashCommandDefinition) error
	GetUserVoiceChannelID(guildID, userID string) (string, error)
	ListVoiceChannelParticipants(guildID, channelID string) ([]VoiceParticipant, error)
	ResolveMemberProfile(guildID, userID string) MemberProfile
	CanPostEmbeds(channelID string) (bool, error)
	SetWatchingStatus(text string) error
	GetBotUserID() (string, error)
	Run() error
}
