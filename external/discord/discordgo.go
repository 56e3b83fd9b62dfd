package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/vcdelay/internal/discord"
)

const (
	avatarSize          = "128"
	requiredEmbedPerms  = discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks
	manageChannelsPerms = int64(discordgo.PermissionManageChannels)
)

type Client struct {
	session   *discordgo.Session
	botUserID string

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient prepares the gateway session so handlers can be registered before Connect.
func NewClient(token string) (discordpkg.Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Client{
		session: s,
		closed:  make(chan struct{}),
	}, nil
}

func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := c.session
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates)
	s.State.TrackVoice = true
	// presence transitions must be handled one at a time, in gateway order
	s.SyncEvents = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) SendChannelEmbed(channelID string, embed discordpkg.Embed) error {
	if c.session == nil {
		return fmt.Errorf("discord session is not initialized")
	}
	_, err := c.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(embed))
	return err
}

func toMessageEmbed(e discordpkg.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return out
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if event, ok := c.voiceStateEvent(vs); ok {
			handler(event)
		}
	})
}

func (c *Client) voiceStateEvent(vs *discordgo.VoiceStateUpdate) (discordpkg.VoiceStateEvent, bool) {
	if vs == nil || vs.VoiceState == nil {
		return discordpkg.VoiceStateEvent{}, false
	}
	beforeChannelID := ""
	if vs.BeforeUpdate != nil {
		beforeChannelID = vs.BeforeUpdate.ChannelID
	}
	afterChannelID := vs.ChannelID
	// mute/deafen/stream toggles keep the channel unchanged
	if beforeChannelID == afterChannelID {
		return discordpkg.VoiceStateEvent{}, false
	}
	if vs.GuildID == "" || vs.UserID == "" {
		return discordpkg.VoiceStateEvent{}, false
	}
	return discordpkg.VoiceStateEvent{
		GuildID:         vs.GuildID,
		UserID:          vs.UserID,
		UserIsBot:       c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
		BeforeChannelID: beforeChannelID,
		AfterChannelID:  afterChannelID,
	}, true
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
		}
		if userID == "" {
			return
		}
		intOptions, channelOptions := commandOptions(data.Options)
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		respond := func(resp *discordgo.InteractionResponseData) error {
			resp.Flags = discordgo.MessageFlagsEphemeral
			return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: resp,
			})
		}
		handler(discordpkg.SlashCommandEvent{
			GuildID:        ic.GuildID,
			ChannelID:      ic.ChannelID,
			CommandName:    data.Name,
			UserID:         userID,
			IntOptions:     intOptions,
			ChannelOptions: channelOptions,
			RespondEphemeral: func(content string) error {
				return respond(&discordgo.InteractionResponseData{Content: content})
			},
			RespondEphemeralEmbed: func(embed discordpkg.Embed) error {
				return respond(&discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{toMessageEmbed(embed)}})
			},
		})
	})
}

func commandOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) (map[string]int64, map[string]string) {
	ints := make(map[string]int64)
	channels := make(map[string]string)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		switch opt.Type {
		case discordgo.ApplicationCommandOptionInteger:
			ints[opt.Name] = opt.IntValue()
		case discordgo.ApplicationCommandOptionChannel:
			if ch := opt.ChannelValue(nil); ch != nil {
				channels[opt.Name] = ch.ID
			}
		}
	}
	return ints, channels
}

func (c *Client) RegisterGuildAvailableHandler(handler func(guildID, guildName string)) {
	c.session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if g == nil || g.Guild == nil || g.ID == "" || g.Unavailable {
			return
		}
		handler(g.ID, g.Name)
	})
}

// UpsertSlashCommands registers defs for guildID, or globally when guildID is empty.
func (c *Client) UpsertSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertSlashCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := toApplicationCommand(def)
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if sameApplicationCommand(cmd, payload) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func toApplicationCommand(def discordpkg.SlashCommandDefinition) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	if def.RequireManageChannels {
		perms := manageChannelsPerms
		cmd.DefaultMemberPermissions = &perms
	}
	for _, o := range def.Options {
		opt := &discordgo.ApplicationCommandOption{
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
		}
		switch o.Type {
		case discordpkg.OptionTypeInteger:
			opt.Type = discordgo.ApplicationCommandOptionInteger
			if o.MinValue != 0 || o.MaxValue != 0 {
				minValue := float64(o.MinValue)
				opt.MinValue = &minValue
				opt.MaxValue = float64(o.MaxValue)
			}
		case discordpkg.OptionTypeTextChannel:
			opt.Type = discordgo.ApplicationCommandOptionChannel
			opt.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
		}
		cmd.Options = append(cmd.Options, opt)
	}
	return cmd
}

func sameApplicationCommand(existing, want *discordgo.ApplicationCommand) bool {
	if existing.Description != want.Description || len(existing.Options) != len(want.Options) {
		return false
	}
	if (existing.DefaultMemberPermissions == nil) != (want.DefaultMemberPermissions == nil) {
		return false
	}
	if existing.DefaultMemberPermissions != nil && *existing.DefaultMemberPermissions != *want.DefaultMemberPermissions {
		return false
	}
	for i, o := range want.Options {
		e := existing.Options[i]
		if e == nil || e.Name != o.Name || e.Type != o.Type || e.Description != o.Description || e.Required != o.Required {
			return false
		}
	}
	return true
}

func (c *Client) GetUserVoiceChannelID(guildID, userID string) (string, error) {
	if c.session == nil {
		return "", nil
	}
	if c.session.State != nil {
		vs, err := c.session.State.VoiceState(guildID, userID)
		if err == nil && vs != nil {
			return vs.ChannelID, nil
		}
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil {
			for _, state := range guild.VoiceStates {
				if state != nil && state.UserID == userID {
					return state.ChannelID, nil
				}
			}
		}
	}

	// Cache may be cold right after bot startup; ask Discord API directly as fallback.
	vs, err := c.session.UserVoiceState(guildID, userID)
	if err != nil {
		if isRESTNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if vs == nil {
		return "", nil
	}
	return vs.ChannelID, nil
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func (c *Client) ListVoiceChannelParticipants(guildID, channelID string) ([]discordpkg.VoiceParticipant, error) {
	if c.session == nil || c.session.State == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s is not in state cache: %w", guildID, err)
	}
	participants := make([]discordpkg.VoiceParticipant, 0)
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID != channelID || state.UserID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		participants = append(participants, discordpkg.VoiceParticipant{
			UserID: state.UserID,
			IsBot:  c.resolveUserIsBot(guildID, state.UserID, state),
		})
	}
	return participants, nil
}

func (c *Client) ResolveMemberProfile(guildID, userID string) discordpkg.MemberProfile {
	profile := discordpkg.MemberProfile{UserID: userID, DisplayName: userID}
	if c.session == nil {
		return profile
	}

	member := c.resolveGuildMember(guildID, userID)
	if member != nil {
		if member.Nick != "" {
			profile.DisplayName = member.Nick
		}
		if member.User != nil {
			if profile.DisplayName == userID {
				profile.DisplayName = preferredDiscordName(member.User.GlobalName, member.User.Username, userID)
			}
			profile.AvatarURL = member.User.AvatarURL(avatarSize)
		}
	}
	if profile.DisplayName == userID || profile.AvatarURL == "" {
		u, err := c.session.User(userID)
		if err == nil && u != nil {
			if profile.DisplayName == userID {
				profile.DisplayName = preferredDiscordName(u.GlobalName, u.Username, userID)
			}
			profile.AvatarURL = u.AvatarURL(avatarSize)
		}
	}
	return profile
}

func (c *Client) CanPostEmbeds(channelID string) (bool, error) {
	botUserID, err := c.GetBotUserID()
	if err != nil {
		return false, err
	}
	perms, err := c.session.UserChannelPermissions(botUserID, channelID)
	if err != nil {
		return false, err
	}
	return perms&requiredEmbedPerms == requiredEmbedPerms, nil
}

func (c *Client) SetWatchingStatus(text string) error {
	if c.session == nil {
		return fmt.Errorf("discord session is not initialized")
	}
	return c.session.UpdateWatchStatus(0, text)
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if isBot, ok := botFlagFromVoiceState(state); ok {
		return isBot
	}
	if isBot, ok := c.botFlagFromSessionState(guildID, userID); ok {
		return isBot
	}
	return c.botFlagFromUserAPI(userID)
}

func botFlagFromVoiceState(state *discordgo.VoiceState) (bool, bool) {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromSessionState(guildID, userID string) (bool, bool) {
	if c.session == nil || c.session.State == nil {
		return false, false
	}
	if c.session.State.User != nil && c.session.State.User.ID == userID {
		return true, true
	}
	member, err := c.session.State.Member(guildID, userID)
	if err == nil && member != nil && member.User != nil {
		return member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromUserAPI(userID string) bool {
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) resolveGuildMember(guildID, userID string) *discordgo.Member {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return member
		}
	}
	member, err := c.session.GuildMember(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func preferredDiscordName(globalName, username, fallback string) string {
	if strings.TrimSpace(globalName) != "" {
		return globalName
	}
	if strings.TrimSpace(username) != "" {
		return username
	}
	return fallback
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

// Run blocks until Close is called; discordgo dispatches events on its own goroutines.
func (c *Client) Run() error {
	<-c.closed
	return nil
}
