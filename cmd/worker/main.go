package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/vinuni-assistant/internal/bootstrap"
	"github.com/kirillkom/vinuni-assistant/internal/config"
	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/observability/logging"
	"github.com/kirillkom/vinuni-assistant/internal/observability/metrics"
)

const serviceName = "worker"

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

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: workerMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	queue, err := app.OpenQueue()
	if err != nil {
		logger.Error("queue_init_failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
	err = queue.Serve(ctx, func(handlerCtx context.Context, question string) domain.ResolutionResult {
		workerMetrics.StartQuestion()
		start := time.Now()
		result := app.Pipeline.Resolve(handlerCtx, question)
		workerMetrics.FinishQuestion(serviceName, questionStatus(result), time.Since(start))
		return result
	})
	if err != nil {
		logger.Error("worker_serve_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker_metrics_shutdown_failed", "error", err)
	}
}

func questionStatus(result domain.ResolutionResult) string {
	switch result.Answer {
	case domain.DenialMessage:
		return "denied"
	case domain.GenericErrorMessage, domain.UnableToSearchMessage, domain.EmptyQuestionMessage:
		return "fallback"
	default:
		return "answered"
	}
}
