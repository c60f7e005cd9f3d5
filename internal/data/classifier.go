package data

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/repo"
	"github.com/devricklin/offline-responder/internal/infra/openai"
)

// classifierRepo asks a chat model to pick a category
type classifierRepo struct {
	client *openai.Client
	prompt string
	log    *zap.Logger
}

// NewClassifierRepo creates a classifier. The prompt may contain {{categories}}.
func NewClassifierRepo(client *openai.Client, prompt string, log *zap.Logger) repo.ClassifierRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &classifierRepo{client: client, prompt: prompt, log: log}
}

// Classify returns one of categories, or "" when the model answers anything else
func (r *classifierRepo) Classify(ctx context.Context, content string, categories []string) (string, error) {
	system := strings.ReplaceAll(r.prompt, "{{categories}}", strings.Join(categories, ", "))
	resp, err := r.client.Chat(ctx, system, content)
	if err != nil {
		return "", err
	}
	answer := normalizeCategory(resp)
	for _, c := range categories {
		if normalizeCategory(c) == answer {
			r.log.Debug("Classified message", zap.String("category", c))
			return c, nil
		}
	}
	r.log.Debug("Classifier found no category", zap.String("answer", resp))
	return "", nil
}

func normalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'`.!")
	return strings.ReplaceAll(s, " ", "_")
}
