package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/offline-responder/internal/biz/repo"
)

func TestConfigRepo_FirstRunCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := NewConfigRepo(path, nil)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, int64(0), cfg.GetInt(repo.TelegramCursorPath, -1))
	assert.Equal(t, "", cfg.GetString("credentials.telegram.token", "x"))
	assert.Equal(t, []string{"noreply@example.com", "newsletter@example.com"}, cfg.GetStrings("excluded_senders"))
}

func TestConfigRepo_GetDefaults(t *testing.T) {
	cfg, err := NewConfigRepo(filepath.Join(t.TempDir(), "config.json"), nil)
	require.NoError(t, err)

	assert.Equal(t, "fallback", cfg.GetString("missing.path", "fallback"))
	assert.Equal(t, "fallback", cfg.GetString("app", "fallback"), "object is not a string")
	assert.Equal(t, int64(9), cfg.GetInt("app.name", 9), "string is not a number")
	assert.True(t, cfg.GetBool("platforms.telegram.enabled", false))
	assert.True(t, cfg.GetBool("platforms.nothing.enabled", true))
	assert.Nil(t, cfg.GetStrings("app.name"))

	_, ok := cfg.Raw("no.such.key")
	assert.False(t, ok)
	raw, ok := cfg.Raw("platforms.email.enabled")
	assert.True(t, ok)
	assert.Equal(t, "false", raw)
}

func TestConfigRepo_SetDeletePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := NewConfigRepo(path, nil)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("credentials.telegram.token", "abc"))
	require.NoError(t, cfg.Set("new.deep.value", 42))
	require.NoError(t, cfg.Set(repo.TelegramCursorPath, int64(1234567890123)))

	reloaded, err := NewConfigRepo(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", reloaded.GetString("credentials.telegram.token", ""))
	assert.Equal(t, int64(42), reloaded.GetInt("new.deep.value", 0))
	assert.Equal(t, int64(1234567890123), reloaded.GetInt(repo.TelegramCursorPath, 0))

	ok, err := reloaded.Delete("new.deep.value")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = reloaded.Delete("new.deep.value")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := NewConfigRepo(path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), again.GetInt("new.deep.value", -1))

	assert.Error(t, again.Set("  ", 1))
}

func TestConfigRepo_KeywordMappingsKeepOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := NewConfigRepo(path, nil)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("keyword_template_mapping.refund", "refunds"))

	reloaded, err := NewConfigRepo(path, nil)
	require.NoError(t, err)
	var keywords []string
	for _, m := range reloaded.KeywordMappings() {
		keywords = append(keywords, m.Keyword)
	}
	assert.Equal(t, []string{"hours", "vacation", "help", "buy", "refund"}, keywords)
}

func TestConfigRepo_MalformedFileRegenerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	cfg, err := NewConfigRepo(path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.GetInt(repo.TelegramCursorPath, -1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "last_update_id")
}

func TestConfigRepo_ReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	daemon, err := NewConfigRepo(path, nil)
	require.NoError(t, err)
	cli, err := NewConfigRepo(path, nil)
	require.NoError(t, err)

	require.NoError(t, cli.Set("excluded_senders", []string{"boss"}))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Equal(t, []string{"boss"}, daemon.GetStrings("excluded_senders"))

	// A cursor write by the daemon keeps the CLI edit
	require.NoError(t, daemon.Set(repo.TelegramCursorPath, int64(77)))
	final, err := NewConfigRepo(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"boss"}, final.GetStrings("excluded_senders"))
	assert.Equal(t, int64(77), final.GetInt(repo.TelegramCursorPath, 0))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(3), ParseValue("3"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "hello", ParseValue("hello"))
	assert.Equal(t, []interface{}{"a", "b"}, ParseValue(`["a","b"]`))
}
