package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/api"
	"github.com/devricklin/offline-responder/internal/conf"
	"github.com/devricklin/offline-responder/internal/logger"
	"github.com/devricklin/offline-responder/internal/mcp"
)

// version is set at build time
var version = "dev"

// This MCP server exposes the responder's control API as tools over stdio.
// Stdout carries the protocol, so all logging goes to stderr.
func main() {
	_ = godotenv.Load()

	cfg := conf.LoadFromEnv()
	zlog, err := logger.New(logger.Options{Level: cfg.Log.Level, Debug: cfg.Debug})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	var client *api.Client
	if baseURL := os.Getenv("RESPONDER_API_URL"); baseURL != "" {
		client = api.NewClientWithBaseURL(baseURL)
	} else {
		client = api.NewClient(cfg.API.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Health(ctx); err != nil {
		zlog.Warn("Responder API not reachable yet, tools will fail until it starts", zap.Error(err))
	}

	server := mcp.NewServer(mcp.NewHandler(client), version)
	zlog.Info("MCP server starting on stdio", zap.Int("api_port", cfg.API.Port))
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		zlog.Fatal("MCP server error", zap.Error(err))
	}
}
