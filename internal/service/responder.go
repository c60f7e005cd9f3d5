package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
	"github.com/devricklin/offline-responder/internal/biz/usecase"
)

// ErrTooManyFailures is returned by Run when consecutive cycles keep failing
var ErrTooManyFailures = errors.New("too many consecutive poll failures")

// ResponderConfig tunes the poll loop
type ResponderConfig struct {
	PollInterval     time.Duration
	ErrorBackoff     time.Duration
	FailureThreshold int
	HistoryRetention time.Duration // 0 disables cleanup
	CleanupInterval  time.Duration
}

// DefaultResponderConfig returns the default loop configuration
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		PollInterval:     3 * time.Second,
		ErrorBackoff:     10 * time.Second,
		FailureThreshold: 5,
		HistoryRetention: 30 * 24 * time.Hour,
		CleanupInterval:  24 * time.Hour,
	}
}

// ResponderService runs poll -> policy -> dispatch -> persist as one sequential loop
type ResponderService struct {
	policy   *usecase.PolicyUsecase
	telegram repo.ChannelRepo
	email    repo.ChannelRepo // optional
	history  repo.HistoryRepo // optional
	store    repo.ConfigRepo  // optional, platforms.<name>.enabled switches

	config ResponderConfig
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	log    *zap.Logger
}

// NewResponderService creates a new responder service
func NewResponderService(
	policy *usecase.PolicyUsecase,
	telegram repo.ChannelRepo,
	email repo.ChannelRepo,
	history repo.HistoryRepo,
	store repo.ConfigRepo,
	config ResponderConfig,
	log *zap.Logger,
) *ResponderService {
	if log == nil {
		log = zap.NewNop()
	}
	defaults := DefaultResponderConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = defaults.ErrorBackoff
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	return &ResponderService{
		policy:   policy,
		telegram: telegram,
		email:    email,
		history:  history,
		store:    store,
		config:   config,
		sleep:    sleepContext,
		now:      time.Now,
		log:      log,
	}
}

// SetSleeper replaces the inter-cycle sleep (tests)
func (s *ResponderService) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	s.sleep = fn
}

// Run polls until ctx is cancelled or the failure threshold is reached.
// State is flushed before returning.
func (s *ResponderService) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		s.cleanupLoop(loopCtx)
	}()

	st := s.policy.Status()
	s.log.Info("Responder started",
		zap.String("state", st.StateName()),
		zap.Int64("cursor", st.Cursor),
		zap.Duration("interval", s.config.PollInterval))

	err := s.pollLoop(loopCtx)

	cancel()
	<-cleanupDone

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if ferr := s.policy.Flush(flushCtx); ferr != nil {
		s.log.Error("Failed to flush state on shutdown", zap.Error(ferr))
	}
	s.log.Info("Responder stopped")
	return err
}

func (s *ResponderService) pollLoop(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		delay := s.config.PollInterval
		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			s.log.Error("Poll cycle failed",
				zap.Int("consecutive", failures),
				zap.Int("threshold", s.config.FailureThreshold),
				zap.Error(err))
			if failures >= s.config.FailureThreshold {
				s.log.Error("Too many consecutive failures, stopping responder")
				return fmt.Errorf("%w: %d", ErrTooManyFailures, failures)
			}
			delay = s.config.ErrorBackoff
		} else {
			failures = 0
		}

		if err := s.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// RunCycle performs one poll cycle over every channel. An error reports a
// degraded cycle; messages that were fetched are still processed.
func (s *ResponderService) RunCycle(ctx context.Context) error {
	log := s.log.With(zap.String("cycle", uuid.NewString()[:8]))

	var errs []error
	if _, err := s.policy.CheckInactivity(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, ch := range []repo.ChannelRepo{s.telegram, s.email} {
		if ch == nil || !s.channelEnabled(ch.Platform()) {
			continue
		}
		msgs, err := ch.Fetch(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Platform(), err))
		}
		if len(msgs) > 0 {
			log.Info("Received messages", zap.String("platform", string(ch.Platform())), zap.Int("count", len(msgs)))
		}
		for i := range msgs {
			if ctx.Err() != nil {
				break
			}
			s.processSafe(ctx, log, &msgs[i])
		}
	}
	return errors.Join(errs...)
}

// processSafe isolates one message so a failure never aborts the batch
func (s *ResponderService) processSafe(ctx context.Context, log *zap.Logger, msg *domain.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing message",
				zap.String("message", msg.DedupKey()),
				zap.Any("panic", r))
		}
	}()
	s.Process(ctx, msg)
}

// Process handles a single inbound message: dedup, policy check, reply,
// bookkeeping. The message is always appended to the pending log.
func (s *ResponderService) Process(ctx context.Context, msg *domain.InboundMessage) {
	log := s.log.With(
		zap.String("platform", string(msg.Platform)),
		zap.String("user_id", msg.UserID),
		zap.String("message", msg.SourceMessageID))

	if s.history != nil {
		fresh, err := s.history.Record(ctx, msg)
		if err != nil {
			log.Warn("Failed to archive message", zap.Error(err))
		} else if !fresh {
			log.Debug("Skipping already processed message")
			return
		}
	}
	if !s.policy.MarkSeen(msg) {
		log.Debug("Skipping duplicate message")
		return
	}

	responded := false
	if s.policy.ShouldRespond(msg) {
		reply := s.policy.BuildReply(ctx, msg)
		ch := s.channelFor(msg.Platform)
		if ch == nil {
			log.Warn("No channel for platform")
		} else if ch.Send(ctx, msg.ChatID, reply) {
			responded = true
			n, err := s.policy.RecordResponse(ctx, msg.UserID)
			if err != nil {
				log.Error("Failed to record response", zap.Error(err))
			}
			log.Info("Auto-replied", zap.String("sender", msg.SenderName), zap.Int("count", n))
			if s.history != nil {
				if err := s.history.MarkResponded(ctx, msg, reply); err != nil {
					log.Warn("Failed to archive reply", zap.Error(err))
				}
			}
		}
	}

	if err := s.policy.AppendPending(ctx, msg, responded); err != nil {
		log.Error("Failed to save pending message", zap.Error(err))
	}
}

// channelEnabled reads platforms.<name>.enabled. Telegram is on unless
// switched off; other platforms must be switched on.
func (s *ResponderService) channelEnabled(p domain.Platform) bool {
	if s.store == nil {
		return true
	}
	return s.store.GetBool("platforms."+string(p)+".enabled", p == domain.PlatformTelegram)
}

func (s *ResponderService) channelFor(p domain.Platform) repo.ChannelRepo {
	switch p {
	case domain.PlatformTelegram:
		return s.telegram
	case domain.PlatformEmail:
		return s.email
	default:
		return nil
	}
}

// cleanupLoop prunes the history archive on an interval
func (s *ResponderService) cleanupLoop(ctx context.Context) {
	if s.history == nil || s.config.HistoryRetention <= 0 {
		return
	}

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	s.cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *ResponderService) cleanup(ctx context.Context) {
	n, err := s.history.CleanupOld(ctx, s.now().Add(-s.config.HistoryRetention))
	if err != nil {
		s.log.Warn("History cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("Cleaned up old history", zap.Int64("deleted", n))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
