package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/devricklin/offline-responder/internal/api"
)

// Handler implements the responder tools on top of the control API
type Handler struct {
	client api.Responder
	now    func() time.Time
}

// NewHandler creates a new MCP handler
func NewHandler(client api.Responder) *Handler {
	return &Handler{client: client, now: time.Now}
}

// ============ Tool Outputs ============

// StatusOutput describes the responder state
type StatusOutput struct {
	State        string `json:"state"`
	OfflineSince string `json:"offline_since,omitempty"`
	PendingCount int    `json:"pending_count"`
	Cursor       int64  `json:"cursor"`
	Summary      string `json:"summary"`
}

// StateOutput is returned by the online/offline tools
type StateOutput struct {
	State   string `json:"state"`
	Changed bool   `json:"changed"`
}

// PendingItem is one pending message
type PendingItem struct {
	Sender        string `json:"sender"`
	Content       string `json:"content"`
	ReceivedAt    string `json:"received_at"`
	AutoResponded bool   `json:"auto_responded"`
}

// PendingOutput lists pending messages
type PendingOutput struct {
	Total    int           `json:"total"`
	Messages []PendingItem `json:"messages"`
	Summary  string        `json:"summary"`
}

// ClearOutput reports how many pending messages were removed
type ClearOutput struct {
	Cleared int `json:"cleared"`
}

// HistoryItem is one archived message
type HistoryItem struct {
	Platform   string `json:"platform"`
	Sender     string `json:"sender"`
	Content    string `json:"content"`
	ReceivedAt string `json:"received_at"`
	Responded  bool   `json:"responded"`
	Reply      string `json:"reply,omitempty"`
}

// HistoryOutput lists archived messages, newest first
type HistoryOutput struct {
	Entries []HistoryItem `json:"entries"`
}

// ============ Handlers ============

// Status returns the current state with a human readable summary
func (h *Handler) Status(ctx context.Context) (StatusOutput, error) {
	st, err := h.client.Status(ctx)
	if err != nil {
		return StatusOutput{}, fmt.Errorf("get status: %w", err)
	}

	out := StatusOutput{
		State:        st.State,
		PendingCount: st.PendingCount,
		Cursor:       st.Cursor,
	}
	if st.IsOffline {
		out.OfflineSince = humanize.RelTime(st.OfflineStartedAt, h.now(), "ago", "from now")
		out.Summary = fmt.Sprintf("Offline since %s, %s pending", out.OfflineSince,
			humanize.Comma(int64(st.PendingCount)))
	} else {
		out.Summary = fmt.Sprintf("Online, last activity %s",
			humanize.RelTime(st.LastActivityAt, h.now(), "ago", "from now"))
	}
	return out, nil
}

// SetOnline switches the responder online
func (h *Handler) SetOnline(ctx context.Context) (StateOutput, error) {
	resp, err := h.client.SetOnline(ctx)
	if err != nil {
		return StateOutput{}, fmt.Errorf("set online: %w", err)
	}
	return StateOutput{State: resp.State, Changed: resp.Changed}, nil
}

// SetOffline switches the responder offline
func (h *Handler) SetOffline(ctx context.Context) (StateOutput, error) {
	resp, err := h.client.SetOffline(ctx)
	if err != nil {
		return StateOutput{}, fmt.Errorf("set offline: %w", err)
	}
	return StateOutput{State: resp.State, Changed: resp.Changed}, nil
}

// ListPending returns up to limit pending messages
func (h *Handler) ListPending(ctx context.Context, limit int) (PendingOutput, error) {
	if limit <= 0 {
		limit = 10
	}
	resp, err := h.client.Pending(ctx, limit)
	if err != nil {
		return PendingOutput{}, fmt.Errorf("list pending: %w", err)
	}

	out := PendingOutput{Total: resp.Total, Summary: resp.Summary, Messages: []PendingItem{}}
	for _, m := range resp.Messages {
		out.Messages = append(out.Messages, PendingItem{
			Sender:        m.Sender,
			Content:       m.Content,
			ReceivedAt:    humanize.RelTime(m.ReceivedAt, h.now(), "ago", "from now"),
			AutoResponded: m.AutoResponded,
		})
	}
	return out, nil
}

// ClearPending empties the pending log
func (h *Handler) ClearPending(ctx context.Context) (ClearOutput, error) {
	n, err := h.client.ClearPending(ctx)
	if err != nil {
		return ClearOutput{}, fmt.Errorf("clear pending: %w", err)
	}
	return ClearOutput{Cleared: n}, nil
}

// History returns recently archived messages
func (h *Handler) History(ctx context.Context, limit int) (HistoryOutput, error) {
	if limit <= 0 {
		limit = 20
	}
	resp, err := h.client.History(ctx, limit)
	if err != nil {
		return HistoryOutput{}, fmt.Errorf("history: %w", err)
	}

	out := HistoryOutput{Entries: []HistoryItem{}}
	for _, e := range resp.Entries {
		out.Entries = append(out.Entries, HistoryItem{
			Platform:   string(e.Platform),
			Sender:     e.SenderName,
			Content:    e.Content,
			ReceivedAt: humanize.RelTime(e.ReceivedAt, h.now(), "ago", "from now"),
			Responded:  e.Responded,
			Reply:      e.Reply,
		})
	}
	return out, nil
}
