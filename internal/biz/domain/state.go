package domain

import "time"

// DefaultPendingLimit is the number of pending messages kept for review
const DefaultPendingLimit = 100

// PendingMessage is a received message retained for operator review
type PendingMessage struct {
	ID            string    `json:"id"`
	Platform      Platform  `json:"platform"`
	ChatID        string    `json:"chat_id"`
	UserID        string    `json:"user_id"`
	Sender        string    `json:"sender"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	MessageID     string    `json:"message_id"`
	ReceivedAt    time.Time `json:"received_at"`
	AutoResponded bool      `json:"auto_responded"`
}

// ResponderState is the process-wide online/offline state
type ResponderState struct {
	IsOffline         bool
	OfflineStartedAt  time.Time
	LastActivityAt    time.Time
	UserResponseCount map[string]int
	PendingMessages   []PendingMessage
}

// NewResponderState creates the first-run state: offline since now
func NewResponderState(now time.Time) *ResponderState {
	return &ResponderState{
		IsOffline:         true,
		OfflineStartedAt:  now,
		LastActivityAt:    now,
		UserResponseCount: make(map[string]int),
	}
}

// SetOnline refreshes activity and leaves offline mode.
// Returns true if the call transitioned OFFLINE -> ONLINE, in which case
// the per-user response counters are cleared.
func (s *ResponderState) SetOnline(now time.Time) bool {
	s.LastActivityAt = now
	if !s.IsOffline {
		return false
	}
	s.IsOffline = false
	s.UserResponseCount = make(map[string]int)
	return true
}

// SetOffline enters offline mode. Returns true on an ONLINE -> OFFLINE transition.
func (s *ResponderState) SetOffline(now time.Time) bool {
	if s.IsOffline {
		return false
	}
	s.IsOffline = true
	s.OfflineStartedAt = now
	return true
}

// CheckInactivity switches to offline when no online refresh happened within threshold
func (s *ResponderState) CheckInactivity(now time.Time, threshold time.Duration) bool {
	if s.IsOffline || threshold <= 0 {
		return false
	}
	if now.Sub(s.LastActivityAt) <= threshold {
		return false
	}
	return s.SetOffline(now)
}

// OfflineDuration returns elapsed time since the last transition into offline
func (s *ResponderState) OfflineDuration(now time.Time) time.Duration {
	if !s.IsOffline {
		return 0
	}
	d := now.Sub(s.OfflineStartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// ResponseCount returns how many auto-replies the user received this session
func (s *ResponderState) ResponseCount(userID string) int {
	return s.UserResponseCount[userID]
}

// IncrementResponse bumps the user's counter. Counters only move while offline.
func (s *ResponderState) IncrementResponse(userID string) (int, bool) {
	if !s.IsOffline {
		return s.UserResponseCount[userID], false
	}
	if s.UserResponseCount == nil {
		s.UserResponseCount = make(map[string]int)
	}
	s.UserResponseCount[userID]++
	return s.UserResponseCount[userID], true
}

// AppendPending adds a message to the pending log, dropping the oldest beyond limit
func (s *ResponderState) AppendPending(msg PendingMessage, limit int) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	s.PendingMessages = append(s.PendingMessages, msg)
	if over := len(s.PendingMessages) - limit; over > 0 {
		kept := make([]PendingMessage, limit)
		copy(kept, s.PendingMessages[over:])
		s.PendingMessages = kept
	}
}

// ClearPending empties the pending log
func (s *ResponderState) ClearPending() int {
	n := len(s.PendingMessages)
	s.PendingMessages = nil
	return n
}

// SplitDuration breaks a duration into whole hours and leftover minutes
func SplitDuration(d time.Duration) (hours, minutes int) {
	if d < 0 {
		return 0, 0
	}
	total := int(d.Seconds())
	return total / 3600, (total % 3600) / 60
}

// Status is a read-only snapshot of the responder state
type Status struct {
	IsOffline        bool
	OfflineStartedAt time.Time
	LastActivityAt   time.Time
	OfflineFor       time.Duration
	PendingCount     int
	RespondedUsers   int
	Cursor           int64
}

// StateName returns ONLINE or OFFLINE
func (s Status) StateName() string {
	if s.IsOffline {
		return "OFFLINE"
	}
	return "ONLINE"
}
