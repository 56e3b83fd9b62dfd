package repository

import "time"

type NotificationStatus string

const (
	NotificationStatusScheduled NotificationStatus = "scheduled"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusCancelled NotificationStatus = "cancelled"
	NotificationStatusFailed    NotificationStatus = "failed"
)

// Terminal reports whether the status closes a scheduled attempt.
func (s NotificationStatus) Terminal() bool {
	switch s {
	case NotificationStatusSent, NotificationStatusCancelled, NotificationStatusFailed:
		return true
	default:
		return false
	}
}

type GuildSettings struct {
	GuildID               string
	Enabled               bool
	DelaySeconds          int
	NotificationChannelID string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Notifiable reports whether presence notifications should be produced for the guild.
func (s *GuildSettings) Notifiable() bool {
	return s != nil && s.Enabled && s.NotificationChannelID != ""
}

type NotificationLogEntry struct {
	ID               string
	GuildID          string
	UserID           string
	ChannelID        string
	JoinTime         time.Time
	NotificationTime *time.Time
	Status           NotificationStatus
	CreatedAt        time.Time
}
