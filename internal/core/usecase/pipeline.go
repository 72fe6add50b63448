package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/core/ports"
)

// Outcome labels reported to the observer.
const (
	OutcomeAnsweredCorpus = "answered_corpus"
	OutcomeAnsweredWeb    = "answered_web"
	OutcomeDenied         = "denied"
	OutcomeFailed         = "failed"
	OutcomeUnconfigured   = "unconfigured"
	OutcomeInvalid        = "invalid"
)

type answerResolver interface {
	Resolve(ctx context.Context, query domain.Query) (Resolution, error)
}

type citationEnricher interface {
	Enrich(ctx context.Context, markers []domain.RawCitation) []domain.EnrichedCitation
}

type PipelineOptions struct {
	Instruction string
	Observer    ports.ResolutionObserver
	Logger      *slog.Logger
}

// Pipeline is the caller-facing answer service. Every failure is folded into
// a fixed user-safe message.
type Pipeline struct {
	resolver    answerResolver
	enricher    citationEnricher
	instruction string
	observer    ports.ResolutionObserver
	logger      *slog.Logger
}

func NewPipeline(resolver answerResolver, enricher citationEnricher, opts PipelineOptions) *Pipeline {
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Instruction == "" {
		opts.Instruction = domain.DefaultPolicy().Instruction()
	}
	return &Pipeline{
		resolver:    resolver,
		enricher:    enricher,
		instruction: opts.Instruction,
		observer:    opts.Observer,
		logger:      opts.Logger,
	}
}

func (p *Pipeline) Resolve(ctx context.Context, question string) (result domain.ResolutionResult) {
	start := time.Now()
	outcome := OutcomeFailed
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error("pipeline_panic", "panic", recovered)
			result = domain.TextResult(domain.GenericErrorMessage)
			outcome = OutcomeFailed
		}
		p.observer.ObserveResolution(outcome, len(result.Citations), time.Since(start))
	}()

	query, err := domain.NewQuery(question, p.instruction)
	if err != nil {
		outcome = OutcomeInvalid
		return domain.TextResult(domain.EmptyQuestionMessage)
	}

	resolution, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		if domain.IsKind(err, domain.ErrMissingConfig) {
			p.logger.Error("answer_resolution_unconfigured", "error", err)
			outcome = OutcomeUnconfigured
			return domain.TextResult(domain.UnableToSearchMessage)
		}
		p.logger.Error("answer_resolution_failed", "error", err)
		return domain.TextResult(domain.GenericErrorMessage)
	}

	switch resolution.Verdict {
	case domain.VerdictDenied:
		outcome = OutcomeDenied
		return domain.TextResult(domain.DenialMessage)
	case domain.VerdictAnswered:
		if resolution.Stage == domain.StageWeb {
			outcome = OutcomeAnsweredWeb
		} else {
			outcome = OutcomeAnsweredCorpus
		}
		citations := p.enricher.Enrich(ctx, resolution.Citations)
		if citations == nil {
			citations = []domain.EnrichedCitation{}
		}
		return domain.ResolutionResult{Answer: resolution.Text, Citations: citations}
	default:
		p.logger.Error("answer_resolution_failed", "verdict", string(resolution.Verdict))
		return domain.TextResult(domain.GenericErrorMessage)
	}
}

type noopObserver struct{}

func (noopObserver) ObserveResolution(string, int, time.Duration) {}
func (noopObserver) ObserveDirectoryLoad(int, error)               {}
