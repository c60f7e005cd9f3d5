package repo

import "github.com/devricklin/offline-responder/internal/biz/domain"

// TemplateRepo is the reply template store
type TemplateRepo interface {
	// Get returns the template stored under id
	Get(id string) (domain.Template, bool)

	// GetOrDefault falls back to the "default" template, then to a hardcoded one
	GetOrDefault(id string) domain.Template

	Add(id string, tpl domain.Template) error
	Delete(id string) (bool, error)
	List() map[string]domain.Template
}
