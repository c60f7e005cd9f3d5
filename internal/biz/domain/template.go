package domain

import "strings"

const (
	// DefaultTemplateID is the template returned when a lookup misses
	DefaultTemplateID = "default"

	// DefaultOfflineTemplateID is the generic offline auto-reply
	DefaultOfflineTemplateID = "default_offline"

	fallbackSubject = "Automatic reply"
	fallbackBody    = "Thank you for contacting us. This is an automated message. We will reply as soon as possible."
)

// Template represents a reply template with {placeholder} markers
type Template struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// FallbackTemplate returns the hardcoded default used when no stored default exists
func FallbackTemplate() Template {
	return Template{Subject: fallbackSubject, Body: fallbackBody}
}

// IsEmpty reports whether the template has no body
func (t Template) IsEmpty() bool {
	return strings.TrimSpace(t.Body) == ""
}

// Render substitutes {name} placeholders in subject and body.
// Unknown placeholders are left untouched.
func (t Template) Render(vars map[string]string) Template {
	if len(vars) == 0 {
		return t
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return Template{
		Subject: r.Replace(t.Subject),
		Body:    r.Replace(t.Body),
	}
}
