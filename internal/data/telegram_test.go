package data

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
	"github.com/devricklin/offline-responder/internal/infra/telegram"
)

// fakeBotAPI serves scripted getUpdates/sendMessage responses
type fakeBotAPI struct {
	mu          sync.Mutex
	updates     [][]map[string]interface{} // one batch per getUpdates call
	offsets     []string
	sendStatus  []int // status per sendMessage call, last one repeats
	sendBodies  []string
	updateFails int // leading getUpdates calls answered with 500
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch filepath.Base(r.URL.Path) {
	case "getUpdates":
		f.offsets = append(f.offsets, r.URL.Query().Get("offset"))
		if f.updateFails > 0 {
			f.updateFails--
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"ok":false,"description":"Internal"}`)
			return
		}
		var batch []map[string]interface{}
		if len(f.updates) > 0 {
			batch, f.updates = f.updates[0], f.updates[1:]
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": batch})
	case "sendMessage":
		body, _ := io.ReadAll(r.Body)
		f.sendBodies = append(f.sendBodies, string(body))
		status := http.StatusOK
		if len(f.sendStatus) > 0 {
			status = f.sendStatus[0]
			if len(f.sendStatus) > 1 {
				f.sendStatus = f.sendStatus[1:]
			}
		}
		w.WriteHeader(status)
		switch {
		case status >= 500:
			_, _ = io.WriteString(w, `{"ok":false,"description":"Bad Gateway"}`)
		case status == http.StatusOK:
			_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
		default:
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func textUpdate(id int64, chatID int64, text string) map[string]interface{} {
	return map[string]interface{}{
		"update_id": id,
		"message": map[string]interface{}{
			"message_id": id * 10,
			"date":       1700000000,
			"chat":       map[string]interface{}{"id": chatID, "type": "private"},
			"from":       map[string]interface{}{"id": chatID, "first_name": "User", "last_name": strconv.FormatInt(chatID, 10)},
			"text":       text,
		},
	}
}

type recordingSleeper struct {
	calls []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func newTestChannel(t *testing.T, api *fakeBotAPI) (repo.ChannelRepo, repo.ConfigRepo, *recordingSleeper) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg, err := NewConfigRepo(filepath.Join(t.TempDir(), "config.json"), nil)
	require.NoError(t, err)

	sleeper := &recordingSleeper{}
	client := telegram.NewClient(srv.Client(), srv.URL, "TOKEN")
	ch := NewTelegramChannel(client, cfg, DefaultTelegramOptions(), sleeper.sleep, nil)
	return ch, cfg, sleeper
}

func TestTelegramFetch_CursorAdvancesOverEveryUpdate(t *testing.T) {
	api := &fakeBotAPI{updates: [][]map[string]interface{}{
		{
			textUpdate(5, 100, "hello"),
			{"update_id": 6}, // no message
			{"update_id": 7, "message": map[string]interface{}{"message_id": 70, "chat": map[string]interface{}{"id": 100}}}, // no text
			textUpdate(8, 200, "price?"),
		},
		{},
	}}
	ch, cfg, _ := newTestChannel(t, api)
	ctx := context.Background()

	msgs, err := ch.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "price?", msgs[1].Content)
	assert.Equal(t, int64(8), cfg.GetInt(repo.TelegramCursorPath, 0))

	msgs, err = ch.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, int64(8), cfg.GetInt(repo.TelegramCursorPath, 0))

	assert.Equal(t, []string{"1", "9"}, api.offsets)
}

func TestTelegramFetch_ResumesFromPersistedCursor(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfg, err := NewConfigRepo(filepath.Join(t.TempDir(), "config.json"), nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Set(repo.TelegramCursorPath, 41))

	ch := NewTelegramChannel(telegram.NewClient(srv.Client(), srv.URL, "TOKEN"), cfg, DefaultTelegramOptions(), nil, nil)
	_, err = ch.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, api.offsets)
}

func TestTelegramFetch_RetriesTransientErrors(t *testing.T) {
	api := &fakeBotAPI{
		updateFails: 2,
		updates:     [][]map[string]interface{}{{textUpdate(1, 100, "hi")}},
	}
	ch, _, sleeper := newTestChannel(t, api)

	msgs, err := ch.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeper.calls)
}

func TestTelegramFetch_GivesUpAfterRetries(t *testing.T) {
	api := &fakeBotAPI{updateFails: 10}
	ch, cfg, sleeper := newTestChannel(t, api)

	msgs, err := ch.Fetch(context.Background())
	assert.Error(t, err)
	assert.Empty(t, msgs)
	assert.Len(t, api.offsets, 3)
	assert.Len(t, sleeper.calls, 2)
	assert.Equal(t, int64(0), cfg.GetInt(repo.TelegramCursorPath, -1))
}

func TestTelegramSend(t *testing.T) {
	api := &fakeBotAPI{sendStatus: []int{http.StatusBadGateway, http.StatusOK}}
	ch, _, sleeper := newTestChannel(t, api)

	assert.True(t, ch.Send(context.Background(), "100", "Hi <b>there</b>"))
	require.Len(t, api.sendBodies, 2)
	assert.Contains(t, api.sendBodies[1], `"parse_mode":"HTML"`)
	assert.Contains(t, api.sendBodies[1], `"chat_id":"100"`)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.calls)
}

func TestTelegramSend_APIErrorNotRetried(t *testing.T) {
	api := &fakeBotAPI{sendStatus: []int{http.StatusBadRequest}}
	ch, _, sleeper := newTestChannel(t, api)

	assert.False(t, ch.Send(context.Background(), "100", "hi"))
	assert.Len(t, api.sendBodies, 1)
	assert.Empty(t, sleeper.calls)
}

func TestTelegramSend_GivesUp(t *testing.T) {
	api := &fakeBotAPI{sendStatus: []int{http.StatusServiceUnavailable}}
	ch, _, _ := newTestChannel(t, api)

	assert.False(t, ch.Send(context.Background(), "100", "hi"))
	assert.Len(t, api.sendBodies, 3)
}

func TestNormalizeUpdate(t *testing.T) {
	u := telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 9,
			Date:      1700000000,
			Chat:      &telegram.Chat{ID: -55},
			From:      &telegram.User{ID: 7, Username: "alice", FirstName: "Alice"},
			Text:      "hello",
		},
	}
	msg, ok := NormalizeUpdate(u)
	require.True(t, ok)
	assert.Equal(t, domain.PlatformTelegram, msg.Platform)
	assert.Equal(t, "-55", msg.ChatID)
	assert.Equal(t, "7", msg.UserID)
	assert.Equal(t, "alice", msg.SenderName)
	assert.Equal(t, "-55:9", msg.SourceMessageID)
	assert.Equal(t, time.Unix(1700000000, 0), msg.ReceivedAt)

	u.Message.From = &telegram.User{ID: 7}
	msg, _ = NormalizeUpdate(u)
	assert.Equal(t, "Unknown", msg.SenderName)

	u.Message.Text = ""
	_, ok = NormalizeUpdate(u)
	assert.False(t, ok)

	_, ok = NormalizeUpdate(telegram.Update{UpdateID: 2})
	assert.False(t, ok)
}

func TestEmailChannel(t *testing.T) {
	ch := NewEmailChannel(nil)
	assert.Equal(t, domain.PlatformEmail, ch.Platform())
	msgs, err := ch.Fetch(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, msgs)
	assert.True(t, ch.Send(context.Background(), "a@b.c", "hi"))
}
