package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/devricklin/offline-responder/internal/biz/repo"
)

// KeywordFamily groups keywords that select the same reply template
type KeywordFamily struct {
	Name       string   `yaml:"name"`
	TemplateID string   `yaml:"template"`
	Keywords   []string `yaml:"keywords"`
}

// DefaultKeywordFamilies returns the built-in families in priority order
func DefaultKeywordFamilies() []KeywordFamily {
	return []KeywordFamily{
		{Name: "urgency", TemplateID: "urgent_response", Keywords: []string{"urgent", "khẩn cấp", "gấp", "emergency"}},
		{Name: "price_inquiry", TemplateID: "price_inquiry", Keywords: []string{"price", "giá", "cost", "bao nhiêu"}},
		{Name: "greeting", TemplateID: "welcome_offline", Keywords: []string{"hello", "hi", "chào", "xin chào"}},
		{Name: "purchase", TemplateID: "sales_offline", Keywords: []string{"buy", "mua", "order", "đặt hàng"}},
		{Name: "support", TemplateID: "support_offline", Keywords: []string{"help", "support", "hỗ trợ", "giúp"}},
	}
}

// Classification is the outcome of template selection
type Classification struct {
	TemplateID string
	Source     string // family, mapping, classifier or fallback
	Match      string // family name, keyword or category that matched
}

// MatchFamily scans families in order and returns the first one with a keyword
// contained in content (case-insensitive substring).
func MatchFamily(families []KeywordFamily, content string) (KeywordFamily, bool) {
	lower := strings.ToLower(content)
	for _, f := range families {
		for _, kw := range f.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				return f, true
			}
		}
	}
	return KeywordFamily{}, false
}

// MatchMapping returns the first mapping whose keyword appears in content as a whole word
func MatchMapping(mappings []repo.KeywordMapping, content string) (repo.KeywordMapping, bool) {
	lower := strings.ToLower(content)
	for _, m := range mappings {
		if containsWord(lower, strings.ToLower(strings.TrimSpace(m.Keyword))) {
			return m, true
		}
	}
	return repo.KeywordMapping{}, false
}

// containsWord reports whether word occurs in s bounded by non-word runes.
// Unicode aware, so "giá" matches in "giá bao nhiêu".
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; start < len(s); {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)

		before, _ := utf8.DecodeLastRuneInString(s[:idx])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (idx == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[idx:])
		start = idx + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
