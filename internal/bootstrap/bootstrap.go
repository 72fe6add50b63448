package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/vinuni-assistant/internal/config"
	"github.com/kirillkom/vinuni-assistant/internal/core/ports"
	"github.com/kirillkom/vinuni-assistant/internal/core/usecase"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/policy/yamlfile"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/reference/postgres"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/reference/sheets"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/reference/xlsx"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/vinuni-assistant/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives the pipeline metrics. A private registry is used
	// when nil.
	Registerer prometheus.Registerer
}

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Executor *resilience.Executor

	References *usecase.ReferenceDirectory
	Pipeline   *usecase.Pipeline

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	logger := opts.Logger

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn("config_warning", "detail", warning)
	}

	policy, err := yamlfile.Load(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	resilienceCfg := resilienceConfig(cfg)
	resilienceCfg.Observer = metrics.NewResilienceMetrics(opts.Service, opts.Registerer)
	resilienceCfg.Logger = logger
	exec := resilience.NewExecutor(resilienceCfg)
	observer := metrics.NewPipelineMetrics(opts.Service, opts.Registerer)

	openAIClient := openai.New(openai.Options{
		BaseURL:         cfg.OpenAIBaseURL,
		APIKey:          cfg.OpenAIAPIKey,
		Model:           cfg.OpenAIModel,
		WebSearchTool:   cfg.OpenAIWebSearchTool,
		ForceToolChoice: cfg.OpenAIForceToolChoice,
		Timeout:         time.Duration(cfg.OpenAITimeoutSeconds) * time.Second,
		Executor:        exec,
	})

	var web ports.WebSearcher = openai.NewWebSearcher(openAIClient)
	if cfg.WebSearchProvider == "gemini" {
		geminiSearcher, err := gemini.NewWebSearcher(ctx, gemini.Options{
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.GeminiModel,
			BaseURL:  cfg.GeminiBaseURL,
			Executor: exec,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini web searcher: %w", err)
		}
		web = geminiSearcher
	}

	source, closeSource, err := ReferenceSource(ctx, cfg, cfg.ReferenceSource, exec)
	if err != nil {
		logger.Warn("reference_source_unavailable", "source", cfg.ReferenceSource, "error", err)
		source = unavailableSource{err: err}
	}

	references := usecase.NewReferenceDirectory(source, usecase.ReferenceDirectoryOptions{
		LoadTimeout: time.Duration(cfg.ReferenceLoadTimeoutSeconds) * time.Second,
		Observer:    observer,
		Logger:      logger,
	})
	resolver := usecase.NewAnswerResolver(openai.NewCorpusSearcher(openAIClient), web, cfg.VectorStoreID, logger)
	pipeline := usecase.NewPipeline(resolver, usecase.NewCitationEnricher(references), usecase.PipelineOptions{
		Instruction: policy.Instruction(),
		Observer:    observer,
		Logger:      logger,
	})

	return &App{
		Config:     cfg,
		Logger:     logger,
		Executor:   exec,
		References: references,
		Pipeline:   pipeline,
		closeFn:    closeSource,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// OpenQueue connects the NATS request-reply transport. The caller owns the
// returned transport and must close it.
func (a *App) OpenQueue() (*nats.Transport, error) {
	return OpenQueue(a.Config, a.Executor, a.Logger)
}

func OpenQueue(cfg config.Config, exec *resilience.Executor, logger *slog.Logger) (*nats.Transport, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		RequestTimeout:     time.Duration(cfg.OpenAITimeoutSeconds)*time.Second*2 + 30*time.Second,
		ResilienceExecutor: exec,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond
	out.RetryMaxBackoff = 4 * out.RetryInitialBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	out.Operations = map[string]resilience.OperationPolicy{
		// The genai and Sheets clients carry no transport timeout of their own.
		"gemini.web_search": {AttemptTimeout: time.Duration(cfg.OpenAITimeoutSeconds) * time.Second},
		"sheets.values_get": {AttemptTimeout: time.Duration(cfg.ReferenceLoadTimeoutSeconds) * time.Second / 2},
	}
	return out
}

// ReferenceSource builds the reference table source named by kind. The
// returned close function is never nil.
func ReferenceSource(ctx context.Context, cfg config.Config, kind string, exec *resilience.Executor) (ports.ReferenceSource, func(), error) {
	noop := func() {}
	switch kind {
	case "xlsx":
		source, err := xlsx.New(cfg.ReferenceWorkbookPath, cfg.ReferenceWorkbookRange)
		if err != nil {
			return nil, noop, err
		}
		return source, noop, nil
	case "postgres":
		source, db, err := OpenPostgresReferences(ctx, cfg.ReferencePostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return source, func() { _ = db.Close() }, nil
	case "sheets":
		source, err := sheets.New(ctx, sheets.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			Range:           cfg.GoogleSpreadsheetRange,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			APIKey:          cfg.GoogleAPIKey,
			Endpoint:        cfg.GoogleSpreadsheetEndpoint,
			Executor:        exec,
		})
		if err != nil {
			return nil, noop, err
		}
		return source, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown reference source %q", kind)
	}
}

// OpenPostgresReferences connects to the reference database and makes sure
// the reference_links table exists.
func OpenPostgresReferences(ctx context.Context, dsn string) (*postgres.Source, *sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	source := postgres.NewSource(db)
	if err := source.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return source, db, nil
}

// unavailableSource stands in for a reference source that could not be
// configured, so citations degrade to titles without links.
type unavailableSource struct {
	err error
}

func (s unavailableSource) FetchRows(context.Context) ([][]string, error) {
	return nil, s.err
}
