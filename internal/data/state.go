package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
)

// stateDocument is the on-disk shape of the responder state
type stateDocument struct {
	IsOffline         bool              `json:"is_offline"`
	OfflineStartTime  isoTime           `json:"offline_start_time"`
	LastActivityTime  isoTime           `json:"last_activity_time"`
	UserResponseCount map[string]int    `json:"user_response_count"`
	PendingMessages   []pendingDocument `json:"pending_messages"`
}

// pendingDocument is one pending record. Older state files carry numeric
// chat, user and message IDs and timestamps without a zone.
type pendingDocument struct {
	ID            string          `json:"id"`
	Platform      domain.Platform `json:"platform"`
	ChatID        flexID          `json:"chat_id"`
	UserID        flexID          `json:"user_id"`
	Sender        string          `json:"sender"`
	Content       string          `json:"content"`
	Timestamp     isoTime         `json:"timestamp"`
	MessageID     flexID          `json:"message_id"`
	ReceivedAt    isoTime         `json:"received_at"`
	AutoResponded bool            `json:"auto_responded"`
}

// zonelessLayouts are ISO-8601 forms without an offset, read as local time
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// isoTime decodes RFC 3339 and zone-less ISO-8601 timestamps.
// It always encodes as RFC 3339.
type isoTime struct {
	time.Time
}

func (t *isoTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	for _, layout := range zonelessLayouts {
		if v, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// flexID decodes an identifier written either as a JSON string or number
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// stateRepo persists ResponderState as a JSON file
type stateRepo struct {
	path string
	now  func() time.Time
	log  *zap.Logger
}

// NewStateRepo creates a new State repository
func NewStateRepo(path string, log *zap.Logger) repo.StateRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &stateRepo{path: path, now: time.Now, log: log}
}

// Load reads the state file. A missing file yields a fresh offline state,
// persisted immediately. A malformed file is kept as <path>.bak first.
func (r *stateRepo) Load(ctx context.Context) (*domain.ResponderState, error) {
	data, err := os.ReadFile(r.path)
	if err == nil {
		var doc stateDocument
		jerr := json.Unmarshal(data, &doc)
		if jerr == nil {
			r.log.Info("Loaded state", zap.String("path", r.path), zap.Bool("offline", doc.IsOffline))
			return doc.toDomain(r.now()), nil
		}
		backup := r.path + ".bak"
		if werr := writeFileAtomic(backup, data); werr != nil {
			return nil, fmt.Errorf("state file is malformed and backup failed: %w", werr)
		}
		r.log.Warn("State file is malformed, starting fresh",
			zap.String("path", r.path),
			zap.String("backup", backup),
			zap.Error(jerr))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	state := domain.NewResponderState(r.now())
	if err := r.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Save writes the state file atomically
func (r *stateRepo) Save(ctx context.Context, state *domain.ResponderState) error {
	doc := stateDocument{
		IsOffline:         state.IsOffline,
		OfflineStartTime:  isoTime{state.OfflineStartedAt},
		LastActivityTime:  isoTime{state.LastActivityAt},
		UserResponseCount: state.UserResponseCount,
		PendingMessages:   make([]pendingDocument, 0, len(state.PendingMessages)),
	}
	if doc.UserResponseCount == nil {
		doc.UserResponseCount = map[string]int{}
	}
	for _, m := range state.PendingMessages {
		doc.PendingMessages = append(doc.PendingMessages, pendingDocument{
			ID:            m.ID,
			Platform:      m.Platform,
			ChatID:        flexID(m.ChatID),
			UserID:        flexID(m.UserID),
			Sender:        m.Sender,
			Content:       m.Content,
			Timestamp:     isoTime{m.Timestamp},
			MessageID:     flexID(m.MessageID),
			ReceivedAt:    isoTime{m.ReceivedAt},
			AutoResponded: m.AutoResponded,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return writeFileAtomic(r.path, data)
}

func (d *stateDocument) toDomain(now time.Time) *domain.ResponderState {
	state := &domain.ResponderState{
		IsOffline:         d.IsOffline,
		OfflineStartedAt:  d.OfflineStartTime.Time,
		LastActivityAt:    d.LastActivityTime.Time,
		UserResponseCount: d.UserResponseCount,
	}
	if state.UserResponseCount == nil {
		state.UserResponseCount = make(map[string]int)
	}
	if state.OfflineStartedAt.IsZero() {
		state.OfflineStartedAt = now
	}
	if state.LastActivityAt.IsZero() {
		state.LastActivityAt = now
	}
	for _, p := range d.PendingMessages {
		msg := domain.PendingMessage{
			ID:            p.ID,
			Platform:      p.Platform,
			ChatID:        string(p.ChatID),
			UserID:        string(p.UserID),
			Sender:        p.Sender,
			Content:       p.Content,
			Timestamp:     p.Timestamp.Time,
			MessageID:     string(p.MessageID),
			ReceivedAt:    p.ReceivedAt.Time,
			AutoResponded: p.AutoResponded,
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Platform == "" {
			msg.Platform = domain.PlatformTelegram
		}
		state.PendingMessages = append(state.PendingMessages, msg)
	}
	return state
}
