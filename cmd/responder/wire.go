package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz"
	"github.com/devricklin/offline-responder/internal/biz/usecase"
	"github.com/devricklin/offline-responder/internal/conf"
	"github.com/devricklin/offline-responder/internal/data"
	"github.com/devricklin/offline-responder/internal/infra/openai"
	"github.com/devricklin/offline-responder/internal/logger"
	"github.com/devricklin/offline-responder/internal/service"
)

// app holds the wired layers for one command invocation
type app struct {
	cfg   *conf.Config
	log   *zap.Logger
	repos *data.Repositories
	uc    biz.Usecases
}

// newLogger builds the process logger. Only the daemon writes a log file.
func newLogger(cfg *conf.Config, withFile bool) (*zap.Logger, error) {
	opts := logger.Options{Level: cfg.Log.Level, Debug: cfg.Debug}
	if withFile {
		opts.Path = cfg.Log.Path
	}
	return logger.New(opts)
}

// newApp opens the stores and builds the policy usecase
func newApp(ctx context.Context, cfg *conf.Config, log *zap.Logger, withHistory bool) (*app, error) {
	if err := os.MkdirAll(cfg.Paths.Home, 0750); err != nil {
		return nil, fmt.Errorf("create home %s: %w", cfg.Paths.Home, err)
	}

	repos, err := data.NewRepositories(repositoryOptions(cfg, withHistory), log)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}

	state, err := repos.State.Load(ctx)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}

	policy := usecase.NewPolicyUsecase(state, repos.State, repos.Templates, repos.Config,
		repos.Classifier, cfg.ToPolicyConfig(), log.Named("policy"))

	return &app{
		cfg:   cfg,
		log:   log,
		repos: repos,
		uc:    biz.Usecases{Policy: policy},
	}, nil
}

// Close releases the stores
func (a *app) Close() {
	if err := a.repos.Close(); err != nil {
		a.log.Warn("Failed to close stores", zap.Error(err))
	}
}

func repositoryOptions(cfg *conf.Config, withHistory bool) data.Options {
	s := cfg.Settings
	if s == nil {
		s = conf.DefaultSettings()
	}

	tg := data.DefaultTelegramOptions()
	tg.UpdatesLimit = s.Telegram.UpdatesLimit
	tg.FetchRetries = s.Telegram.FetchRetries
	tg.FetchRetryDelay = seconds(s.Telegram.FetchRetryDelaySec)
	tg.SendRetries = s.Telegram.SendRetries
	tg.SendRetryDelay = seconds(s.Telegram.SendRetryDelaySec)

	opts := data.Options{
		ConfigPath:       cfg.Paths.ConfigPath,
		TemplatesPath:    cfg.Paths.TemplatesPath,
		StatePath:        cfg.Paths.StatePath,
		TelegramToken:    cfg.Telegram.Token,
		TelegramBaseURL:  cfg.Telegram.BaseURL,
		Telegram:         tg,
		RequestTimeout:   seconds(s.Telegram.RequestTimeoutSeconds),
		ClassifierPrompt: s.Classifier.Prompt,
	}
	if withHistory {
		opts.HistoryDBPath = cfg.Paths.HistoryDBPath
	}
	if cfg.Classifier.Enabled() {
		opts.Classifier = openai.NewClient(cfg.Classifier.APIKey, cfg.Classifier.BaseURL, cfg.Classifier.Model)
	}
	return opts
}

func responderConfig(cfg *conf.Config) service.ResponderConfig {
	s := cfg.Settings
	if s == nil {
		s = conf.DefaultSettings()
	}
	return service.ResponderConfig{
		PollInterval:     seconds(s.Poll.IntervalSeconds),
		ErrorBackoff:     seconds(s.Poll.ErrorBackoffSeconds),
		FailureThreshold: s.Poll.FailureThreshold,
		HistoryRetention: time.Duration(s.History.RetentionDays) * 24 * time.Hour,
		CleanupInterval:  time.Duration(s.History.CleanupIntervalHours) * time.Hour,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
