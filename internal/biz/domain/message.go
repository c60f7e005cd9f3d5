package domain

import "time"

// Platform identifies the chat channel a message came from
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformEmail    Platform = "email"
)

// InboundMessage represents a normalized message received from a channel.
// It is created once by a poller and never mutated afterwards.
type InboundMessage struct {
	Platform        Platform
	ChatID          string // Recipient handle for the reply
	UserID          string // Sender identity, distinct from the display name
	SenderName      string
	Content         string
	ReceivedAt      time.Time
	SourceMessageID string // Platform-assigned ID, used for dedup
}

// DedupKey returns the key identifying this message across polls
func (m *InboundMessage) DedupKey() string {
	return string(m.Platform) + ":" + m.SourceMessageID
}

// IsFrom checks whether the message was sent by the given identity.
// Both the user ID and the display name are accepted.
func (m *InboundMessage) IsFrom(identity string) bool {
	if identity == "" {
		return false
	}
	return m.UserID == identity || m.SenderName == identity
}
