package main

import (
	"context"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/jeonse-legal-assistant/internal/adapters/mcp"
	"github.com/kirillkom/jeonse-legal-assistant/internal/bootstrap"
	"github.com/kirillkom/jeonse-legal-assistant/internal/config"
	"github.com/kirillkom/jeonse-legal-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the protocol; logs go to stderr.
	logger := logging.New(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.Retriever, app.Vocabulary.ExampleQuestions, logger)
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
