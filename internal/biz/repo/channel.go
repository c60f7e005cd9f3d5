package repo

import (
	"context"

	"github.com/devricklin/offline-responder/internal/biz/domain"
)

// ChannelRepo is a message channel able to fetch new messages and send replies
type ChannelRepo interface {
	Platform() domain.Platform

	// Fetch returns newly received messages in delivery order.
	// The returned messages are always usable; a non-nil error only reports
	// that the cycle was degraded (already logged).
	Fetch(ctx context.Context) ([]domain.InboundMessage, error)

	// Send delivers a reply. Failures are logged and collapse to false.
	Send(ctx context.Context, chatID, text string) bool
}
