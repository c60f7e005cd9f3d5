package repo

import (
	"context"
	"time"

	"github.com/devricklin/offline-responder/internal/biz/domain"
)

// HistoryRepo archives inbound messages (SQLite)
type HistoryRepo interface {
	// Record stores a message. Returns false if it was already recorded.
	Record(ctx context.Context, msg *domain.InboundMessage) (bool, error)

	// MarkResponded stores the reply sent for a message
	MarkResponded(ctx context.Context, msg *domain.InboundMessage, reply string) error

	Recent(ctx context.Context, limit int) ([]*domain.HistoryEntry, error)
	CleanupOld(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
