package data

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
)

// DefaultTemplates returns the template set written on first run
func DefaultTemplates() map[string]domain.Template {
	return map[string]domain.Template{
		domain.DefaultTemplateID: domain.FallbackTemplate(),
		"welcome": {
			Subject: "Welcome",
			Body:    "Thanks for reaching out. We have received your message and will get back to you shortly.",
		},
		"out_of_office": {
			Subject: "Out of office",
			Body:    "Thanks for your message. I am currently away and will reply once I am back.",
		},
		"business_hours": {
			Subject: "Business hours",
			Body:    "Thanks for your message. Our business hours are 9:00 to 17:00, Monday to Friday. We will reply during the next business day.",
		},
		domain.DefaultOfflineTemplateID: {
			Subject: "Offline",
			Body:    "🤖 Hi {sender_name}!\n\nThanks for your message. I'm offline right now and can't reply immediately.\n\n💬 Your message has been noted and I will get back to you as soon as possible.",
		},
		"urgent_response": {
			Subject: "Urgent",
			Body:    "🚨 Hi {sender_name}, I can see this is urgent.\n\nI'm offline at the moment ({current_time}, {current_date}) but I will look at your message first thing when I'm back.",
		},
		"price_inquiry": {
			Subject: "Pricing",
			Body:    "💰 Hi {sender_name}, thanks for asking about pricing.\n\nI'm offline right now and will send you the details as soon as I'm back.",
		},
		"welcome_offline": {
			Subject: "Hello",
			Body:    "👋 Hello {sender_name}!\n\nThanks for saying hi. I'm offline right now but I will reply as soon as I can.",
		},
		"sales_offline": {
			Subject: "Orders",
			Body:    "🛒 Hi {sender_name}, thanks for your interest in ordering.\n\nI'm offline right now. Your request is saved and I will confirm it when I'm back.",
		},
		"support_offline": {
			Subject: "Support",
			Body:    "🛠 Hi {sender_name}, your support request has been received.\n\nI'm offline right now and will help you as soon as I'm back.",
		},
	}
}

// templateRepo is a JSON file of templates keyed by ID.
// Edits made to the file by another process are picked up on next access.
type templateRepo struct {
	mu        sync.Mutex
	path      string
	templates map[string]domain.Template
	modTime   time.Time
	log       *zap.Logger
}

// NewTemplateRepo loads templates from path, creating the default set when absent.
// A corrupt file is replaced by the defaults.
func NewTemplateRepo(path string, log *zap.Logger) (repo.TemplateRepo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &templateRepo{path: path, log: log}

	data, err := os.ReadFile(path)
	if err == nil {
		if templates, ok := parseTemplates(data); ok {
			r.templates = templates
			if info, serr := os.Stat(path); serr == nil {
				r.modTime = info.ModTime()
			}
			return r, nil
		}
		log.Warn("Template file is malformed, regenerating defaults", zap.String("path", path))
	} else if os.IsNotExist(err) {
		log.Info("Template file not found, creating defaults", zap.String("path", path))
	} else {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	r.templates = DefaultTemplates()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

func parseTemplates(data []byte) (map[string]domain.Template, bool) {
	var templates map[string]domain.Template
	if err := json.Unmarshal(data, &templates); err != nil || templates == nil {
		return nil, false
	}
	return templates, true
}

// refreshLocked reloads the templates when the file changed on disk.
// An unreadable or invalid file keeps the in-memory set.
func (r *templateRepo) refreshLocked() {
	info, err := os.Stat(r.path)
	if err != nil || info.ModTime().Equal(r.modTime) {
		return
	}
	r.modTime = info.ModTime()
	data, err := os.ReadFile(r.path)
	if err != nil {
		return
	}
	templates, ok := parseTemplates(data)
	if !ok {
		r.log.Warn("Template file changed but is not valid, keeping loaded set", zap.String("path", r.path))
		return
	}
	r.templates = templates
	r.log.Info("Templates reloaded from disk", zap.String("path", r.path), zap.Int("count", len(templates)))
}

// Get returns the template stored under id
func (r *templateRepo) Get(id string) (domain.Template, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()
	tpl, ok := r.templates[id]
	return tpl, ok
}

// GetOrDefault returns the template for id, else "default", else the hardcoded fallback
func (r *templateRepo) GetOrDefault(id string) domain.Template {
	if tpl, ok := r.Get(id); ok {
		return tpl
	}
	r.log.Warn("Template not found, using default", zap.String("id", id))
	if tpl, ok := r.Get(domain.DefaultTemplateID); ok {
		return tpl
	}
	return domain.FallbackTemplate()
}

// Add creates or replaces a template and persists
func (r *templateRepo) Add(id string, tpl domain.Template) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("empty template id")
	}
	if tpl.IsEmpty() {
		return fmt.Errorf("template %s has an empty body", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()

	prev, existed := r.templates[id]
	r.templates[id] = tpl
	if err := r.saveLocked(); err != nil {
		if existed {
			r.templates[id] = prev
		} else {
			delete(r.templates, id)
		}
		return err
	}
	r.log.Info("Template saved", zap.String("id", id))
	return nil
}

// Delete removes a template. Returns false when it did not exist.
func (r *templateRepo) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()

	prev, ok := r.templates[id]
	if !ok {
		r.log.Warn("Cannot delete missing template", zap.String("id", id))
		return false, nil
	}
	delete(r.templates, id)
	if err := r.saveLocked(); err != nil {
		r.templates[id] = prev
		return false, err
	}
	r.log.Info("Template deleted", zap.String("id", id))
	return true, nil
}

// List returns a copy of all templates
func (r *templateRepo) List() map[string]domain.Template {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()
	out := make(map[string]domain.Template, len(r.templates))
	for k, v := range r.templates {
		out[k] = v
	}
	return out
}

// SortedTemplateIDs returns the keys of templates in lexical order
func SortedTemplateIDs(templates map[string]domain.Template) []string {
	ids := make([]string, 0, len(templates))
	for id := range templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *templateRepo) saveLocked() error {
	data, err := json.Marshal(r.templates)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	if err := writeFileAtomic(r.path, pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "    "})); err != nil {
		return err
	}
	if info, err := os.Stat(r.path); err == nil {
		r.modTime = info.ModTime()
	}
	return nil
}
