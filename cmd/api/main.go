package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/vinuni-assistant/internal/adapters/http"
	"github.com/kirillkom/vinuni-assistant/internal/bootstrap"
	"github.com/kirillkom/vinuni-assistant/internal/config"
	"github.com/kirillkom/vinuni-assistant/internal/observability/logging"
	"github.com/kirillkom/vinuni-assistant/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load_env_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: httpMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router, err := httpadapter.NewRouter(app.Pipeline, app.References, httpadapter.RouterOptions{
		Service:     serviceName,
		Logger:      logger,
		Metrics:     httpMetrics,
		Health:      app.Executor.BreakerStates,
		MaxInFlight: cfg.APIMaxInFlight,
		QueueWait:   time.Duration(cfg.APIQueueWaitMS) * time.Millisecond,
	})
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
