package repo

// TelegramCursorPath is where the Telegram update cursor is stored
const TelegramCursorPath = "telegram.last_update_id"

// KeywordMapping maps a keyword to a template ID
type KeywordMapping struct {
	Keyword    string
	TemplateID string
}

// ConfigRepo is the dotted-path configuration store.
// Getters never fail: a missing or mistyped path yields the default.
// Mutations are written through to disk immediately.
type ConfigRepo interface {
	GetString(path, def string) string
	GetInt(path string, def int64) int64
	GetBool(path string, def bool) bool
	GetStrings(path string) []string

	// Raw returns the JSON text stored at path
	Raw(path string) (string, bool)

	// KeywordMappings returns keyword_template_mapping in insertion order
	KeywordMappings() []KeywordMapping

	Set(path string, value interface{}) error
	Delete(path string) (bool, error)
}
