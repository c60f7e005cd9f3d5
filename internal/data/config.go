package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/repo"
)

// defaultConfigDocument is written on first run
const defaultConfigDocument = `{
	"app": {
		"name": "Offline Responder",
		"version": "1.0.0",
		"log_level": "INFO"
	},
	"platforms": {
		"email": {"enabled": false},
		"telegram": {"enabled": true}
	},
	"credentials": {
		"telegram": {"token": ""},
		"email": {
			"username": "your_email@example.com",
			"imap_server": "imap.example.com",
			"imap_port": 993,
			"smtp_server": "smtp.example.com",
			"smtp_port": 587
		}
	},
	"telegram": {"last_update_id": 0},
	"excluded_senders": ["noreply@example.com", "newsletter@example.com"],
	"keyword_template_mapping": {
		"hours": "business_hours",
		"vacation": "out_of_office",
		"help": "support_offline",
		"buy": "sales_offline"
	}
}`

// configRepo is a dotted-path JSON document persisted on every mutation.
// Edits made to the file by another process are picked up on next access.
type configRepo struct {
	mu      sync.Mutex
	path    string
	doc     string
	modTime time.Time
	log     *zap.Logger
}

// NewConfigRepo loads the config document at path, creating it with defaults
// when absent. A corrupt file is replaced by the defaults.
func NewConfigRepo(path string, log *zap.Logger) (repo.ConfigRepo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &configRepo{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case err == nil && validDocument(data):
		r.doc = string(data)
		if info, serr := os.Stat(path); serr == nil {
			r.modTime = info.ModTime()
		}
		return r, nil
	case err == nil:
		log.Warn("Config file is malformed, regenerating defaults", zap.String("path", path))
	case os.IsNotExist(err):
		log.Info("Config file not found, creating defaults", zap.String("path", path))
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	r.doc = defaultConfigDocument
	if err := r.save(); err != nil {
		return nil, err
	}
	return r, nil
}

func validDocument(data []byte) bool {
	return gjson.ValidBytes(data) && gjson.ParseBytes(data).IsObject()
}

func (r *configRepo) get(path string) gjson.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()
	return gjson.Get(r.doc, escapePath(path))
}

// refreshLocked reloads the document when the file changed on disk.
// An unreadable or invalid file keeps the in-memory copy.
func (r *configRepo) refreshLocked() {
	info, err := os.Stat(r.path)
	if err != nil || info.ModTime().Equal(r.modTime) {
		return
	}
	data, err := os.ReadFile(r.path)
	if err != nil || !validDocument(data) {
		r.log.Warn("Config file changed but is not valid JSON, keeping loaded copy", zap.String("path", r.path))
		r.modTime = info.ModTime()
		return
	}
	r.doc = string(data)
	r.modTime = info.ModTime()
	r.log.Info("Config reloaded from disk", zap.String("path", r.path))
}

// GetString returns the string at path, or def when missing or not a string
func (r *configRepo) GetString(path, def string) string {
	v := r.get(path)
	if v.Type != gjson.String {
		return def
	}
	return v.Str
}

// GetInt returns the integer at path, or def when missing or not a number
func (r *configRepo) GetInt(path string, def int64) int64 {
	v := r.get(path)
	if v.Type != gjson.Number {
		return def
	}
	return v.Int()
}

// GetBool returns the boolean at path, or def when missing or not a boolean
func (r *configRepo) GetBool(path string, def bool) bool {
	v := r.get(path)
	if v.Type != gjson.True && v.Type != gjson.False {
		return def
	}
	return v.Bool()
}

// GetStrings returns the string elements of the array at path
func (r *configRepo) GetStrings(path string) []string {
	v := r.get(path)
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if item.Type == gjson.String {
			out = append(out, item.Str)
		}
	}
	return out
}

// Raw returns the JSON text stored at path
func (r *configRepo) Raw(path string) (string, bool) {
	if path == "" {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.refreshLocked()
		return r.doc, true
	}
	v := r.get(path)
	if !v.Exists() {
		return "", false
	}
	return v.Raw, true
}

// KeywordMappings returns keyword_template_mapping in document order
func (r *configRepo) KeywordMappings() []repo.KeywordMapping {
	v := r.get("keyword_template_mapping")
	if !v.IsObject() {
		return nil
	}
	var out []repo.KeywordMapping
	v.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String && key.String() != "" {
			out = append(out, repo.KeywordMapping{Keyword: key.String(), TemplateID: value.Str})
		}
		return true
	})
	return out
}

// Set writes value at path, creating intermediate objects, and persists
func (r *configRepo) Set(path string, value interface{}) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty config path")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()

	doc, err := sjson.Set(r.doc, escapePath(path), value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	prev := r.doc
	r.doc = doc
	if err := r.saveLocked(); err != nil {
		r.doc = prev
		return err
	}
	return nil
}

// Delete removes path. Returns false when nothing was stored there.
func (r *configRepo) Delete(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()

	p := escapePath(path)
	if !gjson.Get(r.doc, p).Exists() {
		r.log.Warn("Cannot delete missing config key", zap.String("key", path))
		return false, nil
	}
	doc, err := sjson.Delete(r.doc, p)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", path, err)
	}
	prev := r.doc
	r.doc = doc
	if err := r.saveLocked(); err != nil {
		r.doc = prev
		return false, err
	}
	return true, nil
}

func (r *configRepo) save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

func (r *configRepo) saveLocked() error {
	if err := writeFileAtomic(r.path, pretty.PrettyOptions([]byte(r.doc), &pretty.Options{Width: 80, Indent: "    "})); err != nil {
		return err
	}
	if info, err := os.Stat(r.path); err == nil {
		r.modTime = info.ModTime()
	}
	return nil
}

// escapePath escapes gjson wildcard characters so keys are taken literally.
// Dots remain path separators.
func escapePath(path string) string {
	var sb strings.Builder
	for _, c := range path {
		switch c {
		case '*', '?', '#', '|', '@', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// ParseValue interprets a CLI argument as JSON when possible, else as a string
func ParseValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// writeFileAtomic writes data through a temp file and rename
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
