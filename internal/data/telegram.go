package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
	"github.com/devricklin/offline-responder/internal/infra/telegram"
)

// TelegramOptions tunes polling and sending
type TelegramOptions struct {
	UpdatesLimit    int
	PollTimeout     time.Duration // getUpdates long-poll timeout, 0 for short polling
	FetchRetries    int
	FetchRetryDelay time.Duration
	SendRetries     int
	SendRetryDelay  time.Duration
	ParseMode       string
}

// DefaultTelegramOptions returns the default polling and sending options
func DefaultTelegramOptions() TelegramOptions {
	return TelegramOptions{
		UpdatesLimit:    10,
		FetchRetries:    3,
		FetchRetryDelay: 5 * time.Second,
		SendRetries:     3,
		SendRetryDelay:  2 * time.Second,
		ParseMode:       "HTML",
	}
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// telegramChannel implements ChannelRepo over the Bot API
type telegramChannel struct {
	client *telegram.Client
	config repo.ConfigRepo
	opts   TelegramOptions
	sleep  Sleeper
	log    *zap.Logger

	mu     sync.Mutex
	cursor int64
}

// NewTelegramChannel creates the Telegram channel. The update cursor is read
// from and persisted to the config store.
func NewTelegramChannel(client *telegram.Client, config repo.ConfigRepo, opts TelegramOptions, sleep Sleeper, log *zap.Logger) repo.ChannelRepo {
	if log == nil {
		log = zap.NewNop()
	}
	if sleep == nil {
		sleep = SleepContext
	}
	defaults := DefaultTelegramOptions()
	if opts.UpdatesLimit <= 0 {
		opts.UpdatesLimit = defaults.UpdatesLimit
	}
	if opts.FetchRetries <= 0 {
		opts.FetchRetries = defaults.FetchRetries
	}
	if opts.SendRetries <= 0 {
		opts.SendRetries = defaults.SendRetries
	}
	return &telegramChannel{
		client: client,
		config: config,
		opts:   opts,
		sleep:  sleep,
		log:    log,
		cursor: config.GetInt(repo.TelegramCursorPath, 0),
	}
}

// Platform returns the channel's platform
func (c *telegramChannel) Platform() domain.Platform {
	return domain.PlatformTelegram
}

// Fetch polls getUpdates past the cursor and normalizes text messages.
// The cursor advances over every returned update and is persisted before
// the messages are handed back.
func (c *telegramChannel) Fetch(ctx context.Context) ([]domain.InboundMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var updates []telegram.Update
	err := c.withRetry(ctx, "getUpdates", c.opts.FetchRetries, c.opts.FetchRetryDelay, func(ctx context.Context) error {
		var err error
		updates, err = c.client.GetUpdates(ctx, c.cursor+1, c.opts.UpdatesLimit, c.opts.PollTimeout)
		return err
	})
	if err != nil {
		c.log.Warn("Fetch failed", zap.Error(err))
		return nil, err
	}

	messages := make([]domain.InboundMessage, 0, len(updates))
	next := c.cursor
	for _, u := range updates {
		if u.UpdateID > next {
			next = u.UpdateID
		}
		if msg, ok := NormalizeUpdate(u); ok {
			messages = append(messages, msg)
		}
	}

	if next == c.cursor {
		return messages, nil
	}
	c.cursor = next
	if err := c.config.Set(repo.TelegramCursorPath, next); err != nil {
		c.log.Error("Failed to persist update cursor", zap.Int64("cursor", next), zap.Error(err))
		return messages, fmt.Errorf("failed to persist cursor: %w", err)
	}
	c.log.Debug("Fetched updates",
		zap.Int("updates", len(updates)),
		zap.Int("messages", len(messages)),
		zap.Int64("cursor", next))
	return messages, nil
}

// Send posts text to chatID. Transient failures are retried, API rejections are not.
func (c *telegramChannel) Send(ctx context.Context, chatID, text string) bool {
	err := c.withRetry(ctx, "sendMessage", c.opts.SendRetries, c.opts.SendRetryDelay, func(ctx context.Context) error {
		return c.client.SendMessage(ctx, chatID, text, c.opts.ParseMode)
	})
	if err != nil {
		c.log.Error("Send failed", zap.String("chat_id", chatID), zap.Error(err))
		return false
	}
	c.log.Info("Reply sent", zap.String("chat_id", chatID))
	return true
}

// withRetry runs fn up to attempts times, sleeping delay between transient failures
func (c *telegramChannel) withRetry(ctx context.Context, name string, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !telegram.IsTransient(lastErr) || attempt == attempts {
			break
		}
		c.log.Warn("Transient Telegram error, retrying",
			zap.String("method", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr))
		if err := c.sleep(ctx, delay); err != nil {
			return errors.Join(lastErr, err)
		}
	}
	return lastErr
}

// NormalizeUpdate converts a raw update into an InboundMessage.
// Updates without a text message are rejected.
func NormalizeUpdate(u telegram.Update) (domain.InboundMessage, bool) {
	m := u.Message
	if m == nil || m.Text == "" || m.Chat == nil {
		return domain.InboundMessage{}, false
	}

	msg := domain.InboundMessage{
		Platform:        domain.PlatformTelegram,
		ChatID:          strconv.FormatInt(m.Chat.ID, 10),
		SenderName:      "Unknown",
		Content:         m.Text,
		ReceivedAt:      time.Unix(m.Date, 0),
		SourceMessageID: strconv.FormatInt(m.Chat.ID, 10) + ":" + strconv.FormatInt(m.MessageID, 10),
	}
	if m.Date == 0 {
		msg.ReceivedAt = time.Now()
	}
	if m.From != nil {
		msg.UserID = strconv.FormatInt(m.From.ID, 10)
		if name := m.From.DisplayName(); name != "" {
			msg.SenderName = name
		}
	} else {
		msg.UserID = msg.ChatID
	}
	return msg, true
}
