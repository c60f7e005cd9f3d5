package repo

import "context"

// ClassifierRepo picks a reply category for content no keyword matched
type ClassifierRepo interface {
	// Classify returns one of categories, or "" if none applies
	Classify(ctx context.Context, content string, categories []string) (string, error)
}
