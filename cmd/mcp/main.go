package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/vinuni-assistant/internal/adapters/mcp"
	"github.com/kirillkom/vinuni-assistant/internal/bootstrap"
	"github.com/kirillkom/vinuni-assistant/internal/config"
	"github.com/kirillkom/vinuni-assistant/internal/observability/logging"
)

const (
	serviceName = "mcp"
	version     = "0.1.0"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load_env_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	// stdout carries the protocol, so logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mcpServer := mcpadapter.New(app.Pipeline, app.References, logger).MCPServer("vinuni-assistant", version)
	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
