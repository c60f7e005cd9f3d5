package domain

import "time"

// HistoryEntry represents an archived inbound message and its reply outcome
type HistoryEntry struct {
	ID              int64      `json:"id"`
	Platform        Platform   `json:"platform"`
	SourceMessageID string     `json:"source_message_id"`
	ChatID          string     `json:"chat_id"`
	UserID          string     `json:"user_id"`
	SenderName      string     `json:"sender_name"`
	Content         string     `json:"content"`
	ReceivedAt      time.Time  `json:"received_at"`
	Responded       bool       `json:"responded"`
	Reply           string     `json:"reply,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
}
