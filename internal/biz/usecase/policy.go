package usecase

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
)

const (
	defaultOfflineSuffix = "\n\n⏰ I have been offline for {offline_hours} hours {offline_minutes} minutes."
	defaultFallbackReply = "Thanks for your message! I'm currently offline and will reply as soon as possible."
)

// PolicyConfig contains responder policy configuration
type PolicyConfig struct {
	InactivityTimeout   time.Duration // Online -> offline after this long without a refresh
	MaxResponsesPerUser int           // Auto-replies per user while offline
	PendingLimit        int           // Pending log capacity
	Families            []KeywordFamily
	OfflineSuffix       string // Appended when offline for at least an hour
	FallbackReply       string // Used when no template exists at all
	ClassifyTimeout     time.Duration
}

// DefaultPolicyConfig returns default policy configuration
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		InactivityTimeout:   300 * time.Second,
		MaxResponsesPerUser: 3,
		PendingLimit:        domain.DefaultPendingLimit,
		Families:            DefaultKeywordFamilies(),
		OfflineSuffix:       defaultOfflineSuffix,
		FallbackReply:       defaultFallbackReply,
		ClassifyTimeout:     10 * time.Second,
	}
}

// PolicyUsecase is the responder policy engine: online/offline state,
// per-user caps, pending log and template selection.
// All state mutations are serialized by a single mutex and written through.
type PolicyUsecase struct {
	mu    sync.Mutex
	state *domain.ResponderState
	seen  map[string]struct{} // dedup keys seen this session

	stateRepo    repo.StateRepo
	templateRepo repo.TemplateRepo
	configRepo   repo.ConfigRepo
	classifier   repo.ClassifierRepo // optional

	config PolicyConfig
	now    func() time.Time
	log    *zap.Logger
}

// NewPolicyUsecase creates a new policy usecase around a loaded state
func NewPolicyUsecase(
	state *domain.ResponderState,
	stateRepo repo.StateRepo,
	templateRepo repo.TemplateRepo,
	configRepo repo.ConfigRepo,
	classifier repo.ClassifierRepo,
	config PolicyConfig,
	log *zap.Logger,
) *PolicyUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	if state == nil {
		state = domain.NewResponderState(time.Now())
	}
	if state.UserResponseCount == nil {
		state.UserResponseCount = make(map[string]int)
	}
	defaults := DefaultPolicyConfig()
	if config.InactivityTimeout <= 0 {
		config.InactivityTimeout = defaults.InactivityTimeout
	}
	if config.MaxResponsesPerUser <= 0 {
		config.MaxResponsesPerUser = defaults.MaxResponsesPerUser
	}
	if config.PendingLimit <= 0 {
		config.PendingLimit = defaults.PendingLimit
	}
	if len(config.Families) == 0 {
		config.Families = defaults.Families
	}
	if config.OfflineSuffix == "" {
		config.OfflineSuffix = defaults.OfflineSuffix
	}
	if config.FallbackReply == "" {
		config.FallbackReply = defaults.FallbackReply
	}
	if config.ClassifyTimeout <= 0 {
		config.ClassifyTimeout = defaults.ClassifyTimeout
	}
	return &PolicyUsecase{
		state:        state,
		seen:         make(map[string]struct{}),
		stateRepo:    stateRepo,
		templateRepo: templateRepo,
		configRepo:   configRepo,
		classifier:   classifier,
		config:       config,
		now:          time.Now,
		log:          log,
	}
}

// SetClock replaces the wall clock (tests)
func (uc *PolicyUsecase) SetClock(now func() time.Time) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.now = now
}

// ========== State Transitions ==========

// SetOnline marks the operator online. On an OFFLINE -> ONLINE transition the
// per-user counters and the session dedup set are cleared.
func (uc *PolicyUsecase) SetOnline(ctx context.Context) (bool, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	changed := uc.state.SetOnline(uc.now())
	if changed {
		uc.seen = make(map[string]struct{})
		uc.log.Info("Switched to ONLINE")
	}
	return changed, uc.saveLocked(ctx)
}

// SetOffline marks the operator offline
func (uc *PolicyUsecase) SetOffline(ctx context.Context) (bool, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.state.SetOffline(uc.now()) {
		return false, nil
	}
	uc.log.Info("Switched to OFFLINE (manual)")
	return true, uc.saveLocked(ctx)
}

// CheckInactivity applies the implicit ONLINE -> OFFLINE transition
func (uc *PolicyUsecase) CheckInactivity(ctx context.Context) (bool, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.state.CheckInactivity(uc.now(), uc.config.InactivityTimeout) {
		return false, nil
	}
	uc.log.Info("Switched to OFFLINE (inactivity)",
		zap.Duration("threshold", uc.config.InactivityTimeout))
	return true, uc.saveLocked(ctx)
}

// ========== Message Policy ==========

// MarkSeen records msg in the session dedup set. Returns false if it was already seen.
func (uc *PolicyUsecase) MarkSeen(msg *domain.InboundMessage) bool {
	if msg.SourceMessageID == "" {
		return true
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()

	key := msg.DedupKey()
	if _, ok := uc.seen[key]; ok {
		return false
	}
	uc.seen[key] = struct{}{}
	return true
}

// ShouldRespond decides whether msg gets an auto-reply
func (uc *PolicyUsecase) ShouldRespond(msg *domain.InboundMessage) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.state.IsOffline {
		return false
	}
	if uc.isExcluded(msg) {
		uc.log.Info("Skipping excluded sender", zap.String("sender", msg.SenderName))
		return false
	}
	return uc.state.ResponseCount(msg.UserID) < uc.config.MaxResponsesPerUser
}

func (uc *PolicyUsecase) isExcluded(msg *domain.InboundMessage) bool {
	if uc.configRepo == nil {
		return false
	}
	for _, s := range uc.configRepo.GetStrings("excluded_senders") {
		if msg.IsFrom(strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// Classify selects the template ID for content: keyword families in priority
// order, then the configured keyword mapping, then the optional classifier,
// then the generic offline template.
func (uc *PolicyUsecase) Classify(ctx context.Context, content string) Classification {
	if f, ok := MatchFamily(uc.config.Families, content); ok {
		return Classification{TemplateID: f.TemplateID, Source: "family", Match: f.Name}
	}

	if uc.configRepo != nil {
		if m, ok := MatchMapping(uc.configRepo.KeywordMappings(), content); ok {
			return Classification{TemplateID: m.TemplateID, Source: "mapping", Match: m.Keyword}
		}
	}

	if uc.classifier != nil && strings.TrimSpace(content) != "" {
		names := make([]string, len(uc.config.Families))
		for i, f := range uc.config.Families {
			names[i] = f.Name
		}
		cctx, cancel := context.WithTimeout(ctx, uc.config.ClassifyTimeout)
		category, err := uc.classifier.Classify(cctx, content, names)
		cancel()
		if err != nil {
			uc.log.Warn("Classifier failed", zap.Error(err))
		}
		for _, f := range uc.config.Families {
			if category != "" && f.Name == category {
				return Classification{TemplateID: f.TemplateID, Source: "classifier", Match: category}
			}
		}
	}

	return Classification{TemplateID: domain.DefaultOfflineTemplateID, Source: "fallback"}
}

// BuildReply renders the auto-reply text for msg
func (uc *PolicyUsecase) BuildReply(ctx context.Context, msg *domain.InboundMessage) string {
	cls := uc.Classify(ctx, msg.Content)

	uc.mu.Lock()
	now := uc.now()
	hours, minutes := domain.SplitDuration(uc.state.OfflineDuration(now))
	uc.mu.Unlock()

	body, found := uc.lookupBody(cls.TemplateID)
	if !found {
		body = uc.config.FallbackReply
	}
	uc.log.Debug("Selected template",
		zap.String("template", cls.TemplateID),
		zap.String("source", cls.Source),
		zap.String("match", cls.Match),
		zap.Bool("found", found))

	sender := msg.SenderName
	if sender == "" {
		sender = "Unknown"
	}
	// Telegram replies are sent with parse_mode HTML
	if msg.Platform == domain.PlatformTelegram {
		sender = html.EscapeString(sender)
	}
	vars := map[string]string{
		"sender_name":     sender,
		"offline_hours":   strconv.Itoa(hours),
		"offline_minutes": strconv.Itoa(minutes),
		"current_time":    now.Format("15:04"),
		"current_date":    now.Format("02/01/2006"),
	}
	text := domain.Template{Body: body}.Render(vars).Body
	if hours > 0 {
		text += domain.Template{Body: uc.config.OfflineSuffix}.Render(vars).Body
	}
	return text
}

// lookupBody tries the candidate, then default_offline
func (uc *PolicyUsecase) lookupBody(templateID string) (string, bool) {
	if uc.templateRepo == nil {
		return "", false
	}
	for _, id := range []string{templateID, domain.DefaultOfflineTemplateID} {
		if tpl, ok := uc.templateRepo.Get(id); ok && !tpl.IsEmpty() {
			return tpl.Body, true
		}
	}
	return "", false
}

// RecordResponse counts a successful auto-reply to userID
func (uc *PolicyUsecase) RecordResponse(ctx context.Context, userID string) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	n, ok := uc.state.IncrementResponse(userID)
	if !ok {
		return n, nil
	}
	return n, uc.saveLocked(ctx)
}

// AppendPending adds msg to the bounded pending log
func (uc *PolicyUsecase) AppendPending(ctx context.Context, msg *domain.InboundMessage, responded bool) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.state.AppendPending(domain.PendingMessage{
		ID:            uuid.NewString(),
		Platform:      msg.Platform,
		ChatID:        msg.ChatID,
		UserID:        msg.UserID,
		Sender:        msg.SenderName,
		Content:       msg.Content,
		Timestamp:     msg.ReceivedAt,
		MessageID:     msg.SourceMessageID,
		ReceivedAt:    uc.now(),
		AutoResponded: responded,
	}, uc.config.PendingLimit)
	return uc.saveLocked(ctx)
}

// ========== Operator Queries ==========

// Status returns a snapshot of the responder state
func (uc *PolicyUsecase) Status() domain.Status {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	st := domain.Status{
		IsOffline:        uc.state.IsOffline,
		OfflineStartedAt: uc.state.OfflineStartedAt,
		LastActivityAt:   uc.state.LastActivityAt,
		OfflineFor:       uc.state.OfflineDuration(uc.now()),
		PendingCount:     len(uc.state.PendingMessages),
		RespondedUsers:   len(uc.state.UserResponseCount),
	}
	if uc.configRepo != nil {
		st.Cursor = uc.configRepo.GetInt(repo.TelegramCursorPath, 0)
	}
	return st
}

// Pending returns up to limit most recent pending messages, oldest first
func (uc *PolicyUsecase) Pending(limit int) []domain.PendingMessage {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	msgs := uc.state.PendingMessages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.PendingMessage, len(msgs))
	copy(out, msgs)
	return out
}

// PendingSummary formats the last limit pending messages for display
func (uc *PolicyUsecase) PendingSummary(limit int) string {
	if limit <= 0 {
		limit = 10
	}
	total := uc.Status().PendingCount
	if total == 0 {
		return "No messages received while offline."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📨 %d messages received while offline:\n\n", total))
	for i, m := range uc.Pending(limit) {
		sb.WriteString(fmt.Sprintf("%d. %s: %s (%s)\n",
			i+1, m.Sender, truncateRunes(m.Content, 50), m.ReceivedAt.Format("02/01 15:04")))
	}
	if total > limit {
		sb.WriteString(fmt.Sprintf("\n... and %d more.", total-limit))
	}
	return sb.String()
}

// ClearPending empties the pending log
func (uc *PolicyUsecase) ClearPending(ctx context.Context) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	n := uc.state.ClearPending()
	uc.log.Info("Cleared pending messages", zap.Int("count", n))
	return n, uc.saveLocked(ctx)
}

// Flush persists the current state
func (uc *PolicyUsecase) Flush(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.saveLocked(ctx)
}

func (uc *PolicyUsecase) saveLocked(ctx context.Context) error {
	if uc.stateRepo == nil {
		return nil
	}
	if err := uc.stateRepo.Save(ctx, uc.state); err != nil {
		uc.log.Error("Failed to save state", zap.Error(err))
		return err
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
