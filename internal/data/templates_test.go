package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/offline-responder/internal/biz/domain"
)

func TestTemplateRepo_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	r, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)

	for _, id := range []string{"default", "default_offline", "urgent_response", "price_inquiry", "welcome_offline", "sales_offline", "support_offline"} {
		tpl, ok := r.Get(id)
		require.True(t, ok, id)
		assert.False(t, tpl.IsEmpty(), id)
	}
	welcome, _ := r.Get("welcome_offline")
	assert.True(t, strings.Contains(welcome.Body, "{sender_name}"))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestTemplateRepo_GetOrDefault(t *testing.T) {
	r, err := NewTemplateRepo(filepath.Join(t.TempDir(), "templates.json"), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.FallbackTemplate(), r.GetOrDefault("nope"))

	_, err = r.Delete(domain.DefaultTemplateID)
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackTemplate(), r.GetOrDefault("nope"))

	require.NoError(t, r.Add(domain.DefaultTemplateID, domain.Template{Body: "custom default"}))
	assert.Equal(t, "custom default", r.GetOrDefault("nope").Body)
}

func TestTemplateRepo_AddDeletePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	r, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)

	require.NoError(t, r.Add("billing", domain.Template{Subject: "Billing", Body: "Hi {sender_name}"}))
	assert.Error(t, r.Add("", domain.Template{Body: "x"}))
	assert.Error(t, r.Add("blank", domain.Template{Body: "  "}))

	reloaded, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)
	tpl, ok := reloaded.Get("billing")
	require.True(t, ok)
	assert.Equal(t, "Billing", tpl.Subject)

	ok, err = reloaded.Delete("billing")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = reloaded.Delete("billing")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)
	_, ok = again.Get("billing")
	assert.False(t, ok)
}

func TestTemplateRepo_MalformedRegenerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2"), 0644))

	r, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)
	assert.Len(t, r.List(), len(DefaultTemplates()))
}

func TestTemplateRepo_ReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	daemon, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)
	cli, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)

	require.NoError(t, cli.Add("holiday", domain.Template{Subject: "Holiday", Body: "Back on Monday, {sender_name}."}))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	tpl, ok := daemon.Get("holiday")
	require.True(t, ok)
	assert.Equal(t, "Holiday", tpl.Subject)

	// A later edit by the daemon keeps the CLI template
	require.NoError(t, daemon.Add("extra", domain.Template{Body: "extra"}))
	final, err := NewTemplateRepo(path, nil)
	require.NoError(t, err)
	_, ok = final.Get("holiday")
	assert.True(t, ok)
	_, ok = final.Get("extra")
	assert.True(t, ok)

	// An invalid rewrite keeps the loaded set
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	later := future.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	_, ok = daemon.Get("holiday")
	assert.True(t, ok)
}

func TestSortedTemplateIDs(t *testing.T) {
	ids := SortedTemplateIDs(map[string]domain.Template{"b": {}, "a": {}, "c": {}})
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
