package data

import (
	"context"

	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
)

// emailChannel is a placeholder channel: it never receives and pretends to send
type emailChannel struct {
	log *zap.Logger
}

// NewEmailChannel creates the email stub channel
func NewEmailChannel(log *zap.Logger) repo.ChannelRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &emailChannel{log: log}
}

// Platform returns the channel's platform
func (c *emailChannel) Platform() domain.Platform {
	return domain.PlatformEmail
}

// Fetch always returns no messages
func (c *emailChannel) Fetch(ctx context.Context) ([]domain.InboundMessage, error) {
	return nil, nil
}

// Send logs the reply and reports success
func (c *emailChannel) Send(ctx context.Context, chatID, text string) bool {
	c.log.Info("Email reply (stub)", zap.String("to", chatID), zap.Int("length", len(text)))
	return true
}
