package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/api"
	"github.com/devricklin/offline-responder/internal/data"
	"github.com/devricklin/offline-responder/internal/service"
)

func newRunCmd() *cobra.Command {
	var noAPI bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll Telegram and auto-reply while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Log.Path == "" {
				cfg.Log.Path = filepath.Join(cfg.Paths.Home, "logs", "responder.log")
			}
			log, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			lock, err := data.AcquireDaemonLock(data.LockPath(cfg.Paths.StatePath))
			if err != nil {
				return fmt.Errorf("cannot start: %w", err)
			}
			defer lock.Release() //nolint:errcheck

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.repos.TelegramClient.HasToken() {
				return fmt.Errorf("telegram token missing: set TELEGRAM_BOT_TOKEN or credentials.telegram.token")
			}
			if cfg.Settings != nil && cfg.Settings.LoadedFrom != "" {
				log.Info("Settings loaded", zap.String("path", cfg.Settings.LoadedFrom))
			}

			svc := service.NewResponderService(a.uc.Policy, a.repos.Telegram, a.repos.Email,
				a.repos.History, a.repos.Config, responderConfig(cfg), log.Named("responder"))

			var apiServer *api.Server
			if !noAPI {
				apiServer = api.NewServer(a.uc.Policy, a.repos.History, cfg.API.Port, log)
				if err := apiServer.Start(); err != nil {
					return err
				}
			}

			st := a.uc.Policy.Status()
			log.Info("Starting offline responder",
				zap.String("state", st.StateName()),
				zap.Int("pending", st.PendingCount),
				zap.Int64("cursor", st.Cursor))

			runErr := svc.Run(ctx)

			if apiServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := apiServer.Stop(shutdownCtx); err != nil {
					log.Warn("API shutdown failed", zap.Error(err))
				}
			}

			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.Error("Responder stopped", zap.Error(runErr))
				return runErr
			}
			log.Info("Shut down")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not start the control API (online, offline and clear-pending are refused while running)")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the Telegram token and print the bot identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.repos.TelegramClient.HasToken() {
				return fmt.Errorf("telegram token missing: set TELEGRAM_BOT_TOKEN or credentials.telegram.token")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			me, err := a.repos.TelegramClient.GetMe(ctx)
			if err != nil {
				return fmt.Errorf("telegram check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bot OK: @%s (id %d)\n", me.Username, me.ID)
			return nil
		},
	}
}
