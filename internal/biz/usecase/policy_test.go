package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
)

type mockStateRepo struct {
	saves int
	last  domain.ResponderState
}

func (m *mockStateRepo) Load(ctx context.Context) (*domain.ResponderState, error) {
	s := m.last
	return &s, nil
}

func (m *mockStateRepo) Save(ctx context.Context, s *domain.ResponderState) error {
	m.saves++
	m.last = *s
	return nil
}

type mockTemplateRepo struct {
	templates map[string]domain.Template
}

func (m *mockTemplateRepo) Get(id string) (domain.Template, bool) {
	t, ok := m.templates[id]
	return t, ok
}

func (m *mockTemplateRepo) GetOrDefault(id string) domain.Template {
	if t, ok := m.templates[id]; ok {
		return t
	}
	return domain.FallbackTemplate()
}

func (m *mockTemplateRepo) Add(id string, tpl domain.Template) error {
	m.templates[id] = tpl
	return nil
}

func (m *mockTemplateRepo) Delete(id string) (bool, error) {
	_, ok := m.templates[id]
	delete(m.templates, id)
	return ok, nil
}

func (m *mockTemplateRepo) List() map[string]domain.Template {
	return m.templates
}

type mockConfigRepo struct {
	strings  map[string][]string
	ints     map[string]int64
	mappings []repo.KeywordMapping
}

func (m *mockConfigRepo) GetString(path, def string) string { return def }

func (m *mockConfigRepo) GetInt(path string, def int64) int64 {
	if v, ok := m.ints[path]; ok {
		return v
	}
	return def
}

func (m *mockConfigRepo) GetBool(path string, def bool) bool { return def }

func (m *mockConfigRepo) GetStrings(path string) []string { return m.strings[path] }

func (m *mockConfigRepo) Raw(path string) (string, bool) { return "", false }

func (m *mockConfigRepo) KeywordMappings() []repo.KeywordMapping { return m.mappings }

func (m *mockConfigRepo) Set(path string, value interface{}) error { return nil }

func (m *mockConfigRepo) Delete(path string) (bool, error) { return false, nil }

type mockClassifier struct {
	category string
	err      error
	calls    int
}

func (m *mockClassifier) Classify(ctx context.Context, content string, categories []string) (string, error) {
	m.calls++
	return m.category, m.err
}

func defaultTemplates() *mockTemplateRepo {
	return &mockTemplateRepo{templates: map[string]domain.Template{
		"default_offline": {Body: "Hi {sender_name}, I'm away."},
		"urgent_response": {Body: "URGENT noted, {sender_name}."},
		"price_inquiry":   {Body: "Prices later, {sender_name}."},
		"welcome_offline": {Body: "Hello {sender_name}! Offline for {offline_hours}h {offline_minutes}m."},
		"support_offline": {Body: "Support request received."},
	}}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPolicy(t *testing.T, tpl repo.TemplateRepo, cfg *mockConfigRepo, cls repo.ClassifierRepo) (*PolicyUsecase, *mockStateRepo, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	if cfg == nil {
		cfg = &mockConfigRepo{}
	}
	stateRepo := &mockStateRepo{}
	uc := NewPolicyUsecase(domain.NewResponderState(c.t), stateRepo, tpl, cfg, cls, DefaultPolicyConfig(), nil)
	uc.SetClock(c.now)
	return uc, stateRepo, c
}

func msgFrom(user, content string) *domain.InboundMessage {
	return &domain.InboundMessage{
		Platform:        domain.PlatformTelegram,
		ChatID:          "chat-" + user,
		UserID:          user,
		SenderName:      user,
		Content:         content,
		SourceMessageID: user + ":" + content,
	}
}

func TestShouldRespond_CapPerUser(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)
	msg := msgFrom("u1", "hey")

	for i := 0; i < 3; i++ {
		require.True(t, uc.ShouldRespond(msg), "reply %d should be allowed", i+1)
		_, err := uc.RecordResponse(ctx, msg.UserID)
		require.NoError(t, err)
	}
	assert.False(t, uc.ShouldRespond(msg), "4th message must be suppressed")
	assert.True(t, uc.ShouldRespond(msgFrom("u2", "hey")), "other users are counted separately")
}

func TestShouldRespond_OnlineNeverReplies(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)

	changed, err := uc.SetOnline(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, uc.ShouldRespond(msgFrom("u1", "urgent")))
}

func TestShouldRespond_ExcludedSenders(t *testing.T) {
	cfg := &mockConfigRepo{strings: map[string][]string{"excluded_senders": {"boss", " 42 "}}}
	uc, _, _ := newTestPolicy(t, defaultTemplates(), cfg, nil)

	assert.False(t, uc.ShouldRespond(msgFrom("boss", "hi")))

	byID := msgFrom("42", "hi")
	byID.SenderName = "Someone"
	assert.False(t, uc.ShouldRespond(byID))

	assert.True(t, uc.ShouldRespond(msgFrom("carol", "hi")))
}

func TestSetOnline_ResetsCountersOnTransition(t *testing.T) {
	ctx := context.Background()
	uc, stateRepo, _ := newTestPolicy(t, defaultTemplates(), nil, nil)
	msg := msgFrom("u1", "hey")

	for i := 0; i < 3; i++ {
		_, err := uc.RecordResponse(ctx, msg.UserID)
		require.NoError(t, err)
	}
	require.False(t, uc.ShouldRespond(msg))

	_, err := uc.SetOnline(ctx)
	require.NoError(t, err)
	_, err = uc.SetOffline(ctx)
	require.NoError(t, err)

	assert.True(t, uc.ShouldRespond(msg))
	assert.Empty(t, stateRepo.last.UserResponseCount)
	assert.Equal(t, 0, uc.Status().RespondedUsers)
}

func TestSetOnline_RefreshKeepsCounters(t *testing.T) {
	ctx := context.Background()
	uc, stateRepo, c := newTestPolicy(t, defaultTemplates(), nil, nil)

	_, err := uc.SetOnline(ctx)
	require.NoError(t, err)
	c.advance(time.Minute)

	changed, err := uc.SetOnline(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, c.t, stateRepo.last.LastActivityAt)
}

func TestRecordResponse_IgnoredWhileOnline(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)
	_, err := uc.SetOnline(ctx)
	require.NoError(t, err)

	n, err := uc.RecordResponse(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCheckInactivity(t *testing.T) {
	ctx := context.Background()
	uc, _, c := newTestPolicy(t, defaultTemplates(), nil, nil)
	_, err := uc.SetOnline(ctx)
	require.NoError(t, err)

	c.advance(299 * time.Second)
	changed, err := uc.CheckInactivity(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	c.advance(2 * time.Second)
	changed, err = uc.CheckInactivity(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	st := uc.Status()
	assert.True(t, st.IsOffline)
	assert.Equal(t, c.t, st.OfflineStartedAt)
}

func TestClassify_FamilyPriority(t *testing.T) {
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)

	cls := uc.Classify(context.Background(), "URGENT: what is the price?")
	assert.Equal(t, "urgent_response", cls.TemplateID)
	assert.Equal(t, "family", cls.Source)

	cls = uc.Classify(context.Background(), "giá bao nhiêu vậy")
	assert.Equal(t, "price_inquiry", cls.TemplateID)
}

func TestClassify_MappingThenClassifierThenFallback(t *testing.T) {
	cfg := &mockConfigRepo{mappings: []repo.KeywordMapping{
		{Keyword: "invoice", TemplateID: "billing"},
		{Keyword: "refund", TemplateID: "refunds"},
	}}
	cls := &mockClassifier{category: "support"}
	uc, _, _ := newTestPolicy(t, defaultTemplates(), cfg, cls)
	ctx := context.Background()

	got := uc.Classify(ctx, "About my refund and invoice")
	assert.Equal(t, "billing", got.TemplateID, "first mapping in insertion order wins")
	assert.Equal(t, 0, cls.calls)

	got = uc.Classify(ctx, "invoices are late")
	assert.Equal(t, "support_offline", got.TemplateID, "whole-word mapping only; classifier decides")
	assert.Equal(t, "classifier", got.Source)

	cls.category, cls.err = "", errors.New("boom")
	got = uc.Classify(ctx, "random words")
	assert.Equal(t, domain.DefaultOfflineTemplateID, got.TemplateID)
	assert.Equal(t, "fallback", got.Source)
}

func TestBuildReply_GreetingWithOfflineSuffix(t *testing.T) {
	uc, _, c := newTestPolicy(t, defaultTemplates(), nil, nil)
	c.advance(2*time.Hour + 5*time.Minute)

	msg := msgFrom("alice", "hello there")
	msg.SenderName = "Alice"
	reply := uc.BuildReply(context.Background(), msg)

	assert.True(t, strings.HasPrefix(reply, "Hello Alice! Offline for 2h 5m."))
	assert.True(t, strings.HasSuffix(reply, "\n\n⏰ I have been offline for 2 hours 5 minutes."))
}

func TestBuildReply_NoSuffixUnderAnHour(t *testing.T) {
	uc, _, c := newTestPolicy(t, defaultTemplates(), nil, nil)
	c.advance(59 * time.Minute)

	reply := uc.BuildReply(context.Background(), msgFrom("bob", "need help"))
	assert.Equal(t, "Support request received.", reply)
}

func TestBuildReply_TemplateFallbacks(t *testing.T) {
	tpl := defaultTemplates()
	delete(tpl.templates, "urgent_response")
	uc, _, _ := newTestPolicy(t, tpl, nil, nil)

	msg := msgFrom("bob", "urgent!")
	assert.Equal(t, "Hi bob, I'm away.", uc.BuildReply(context.Background(), msg))

	delete(tpl.templates, "default_offline")
	assert.Equal(t, defaultFallbackReply, uc.BuildReply(context.Background(), msg))
}

func TestBuildReply_UnknownSender(t *testing.T) {
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)
	msg := msgFrom("u9", "ok")
	msg.SenderName = ""

	assert.Equal(t, "Hi Unknown, I'm away.", uc.BuildReply(context.Background(), msg))
}

func TestBuildReply_EscapesTelegramSenderName(t *testing.T) {
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)

	msg := msgFrom("u1", "ok")
	msg.SenderName = "<b>Tom & Jerry</b>"
	assert.Equal(t, "Hi &lt;b&gt;Tom &amp; Jerry&lt;/b&gt;, I'm away.", uc.BuildReply(context.Background(), msg))

	msg.Platform = domain.PlatformEmail
	assert.Equal(t, "Hi <b>Tom & Jerry</b>, I'm away.", uc.BuildReply(context.Background(), msg))
}

func TestAppendPending_Bounded(t *testing.T) {
	ctx := context.Background()
	uc, stateRepo, _ := newTestPolicy(t, defaultTemplates(), nil, nil)

	for i := 0; i < 105; i++ {
		require.NoError(t, uc.AppendPending(ctx, msgFrom("u1", strings.Repeat("x", i+1)), i%2 == 0))
	}
	pending := uc.Pending(0)
	require.Len(t, pending, 100)
	assert.Len(t, pending[0].Content, 6)
	assert.Len(t, pending[99].Content, 105)
	assert.Len(t, stateRepo.last.PendingMessages, 100)

	assert.Len(t, uc.Pending(5), 5)

	n, err := uc.ClearPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, 0, uc.Status().PendingCount)
}

func TestSuppressedMessageStillPending(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)
	msg := msgFrom("u1", "again")

	for i := 0; i < 4; i++ {
		responded := uc.ShouldRespond(msg)
		if responded {
			_, err := uc.RecordResponse(ctx, msg.UserID)
			require.NoError(t, err)
		}
		require.NoError(t, uc.AppendPending(ctx, msg, responded))
	}

	pending := uc.Pending(0)
	require.Len(t, pending, 4)
	assert.True(t, pending[2].AutoResponded)
	assert.False(t, pending[3].AutoResponded)
}

func TestMarkSeen(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)
	msg := msgFrom("u1", "hey")

	assert.True(t, uc.MarkSeen(msg))
	assert.False(t, uc.MarkSeen(msg))

	_, err := uc.SetOnline(ctx)
	require.NoError(t, err)
	assert.True(t, uc.MarkSeen(msg), "dedup set is cleared when going online")
}

func TestPendingSummary(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestPolicy(t, defaultTemplates(), nil, nil)
	assert.Equal(t, "No messages received while offline.", uc.PendingSummary(10))

	for i := 0; i < 3; i++ {
		require.NoError(t, uc.AppendPending(ctx, msgFrom("u1", "msg"), true))
	}
	s := uc.PendingSummary(2)
	assert.Contains(t, s, "3 messages received while offline")
	assert.Contains(t, s, "... and 1 more.")
}

func TestStatus_Cursor(t *testing.T) {
	cfg := &mockConfigRepo{ints: map[string]int64{repo.TelegramCursorPath: 77}}
	uc, _, _ := newTestPolicy(t, defaultTemplates(), cfg, nil)
	assert.Equal(t, int64(77), uc.Status().Cursor)
	assert.Equal(t, "OFFLINE", uc.Status().StateName())
}
