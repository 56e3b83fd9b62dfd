package session

import (
	"errors"
	"sync"
	"time"

	"github.com/foxseedlab/vcdelay/internal/discord"
)

var (
	ErrSessionExists   = errors.New("channel session already exists")
	ErrSessionNotFound = errors.New("channel session not found")
)

// ChannelSession is one continuous occupied interval of a voice channel.
type ChannelSession struct {
	ChannelID            string
	GuildID              string
	FirstMemberID        string
	JoinTime             time.Time
	JoinNotificationSent bool
	// LogEntryID is empty when the scheduled row could not be written.
	LogEntryID string
}

func (s ChannelSession) logKey() LogKey {
	return LogKey{EntryID: s.LogEntryID, GuildID: s.GuildID, UserID: s.FirstMemberID, ChannelID: s.ChannelID}
}

func (s ChannelSession) sameInterval(other ChannelSession) bool {
	return s.ChannelID == other.ChannelID && s.FirstMemberID == other.FirstMemberID && s.JoinTime.Equal(other.JoinTime)
}

// Registry is the single source of truth for which voice channels are tracked as occupied.
// It owns session bookkeeping only; membership counting comes from the platform state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*ChannelSession
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*ChannelSession)}
}

// OccupancyAfterJoin counts non-bot participants, always including memberID
// in case the platform state has not caught up with the join yet.
func (r *Registry) OccupancyAfterJoin(participants []discord.VoiceParticipant, memberID string) int {
	count, seenMember := countHumans(participants, memberID)
	if !seenMember {
		count++
	}
	return count
}

// OccupancyAfterLeave counts non-bot participants, never including memberID.
func (r *Registry) OccupancyAfterLeave(participants []discord.VoiceParticipant, memberID string) int {
	count, seenMember := countHumans(participants, memberID)
	if seenMember {
		count--
	}
	return count
}

func countHumans(participants []discord.VoiceParticipant, memberID string) (int, bool) {
	count := 0
	seenMember := false
	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if p.IsBot || p.UserID == "" {
			continue
		}
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		seen[p.UserID] = struct{}{}
		if p.UserID == memberID {
			seenMember = true
		}
		count++
	}
	return count, seenMember
}

// CreateSession never overwrites; an existing session must be destroyed first.
func (r *Registry) CreateSession(s ChannelSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ChannelID]; exists {
		return ErrSessionExists
	}
	s.JoinNotificationSent = false
	r.sessions[s.ChannelID] = &s
	return nil
}

// MarkJoinNotified flags the session only while it is still the interval that was notified.
// A session that ended or was replaced in the meantime yields ErrSessionNotFound.
func (r *Registry) MarkJoinNotified(notified ChannelSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[notified.ChannelID]
	if !ok || !s.sameInterval(notified) {
		return ErrSessionNotFound
	}
	s.JoinNotificationSent = true
	return nil
}

func (r *Registry) DestroySession(channelID string) (ChannelSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[channelID]
	if !ok {
		return ChannelSession{}, false
	}
	delete(r.sessions, channelID)
	return *s, true
}

func (r *Registry) GetSession(channelID string) (ChannelSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[channelID]
	if !ok {
		return ChannelSession{}, false
	}
	return *s, true
}

func (r *Registry) SessionsInGuild(guildID string) []ChannelSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChannelSession, 0)
	for _, s := range r.sessions {
		if s.GuildID == guildID {
			out = append(out, *s)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
