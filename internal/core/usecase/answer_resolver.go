package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/core/ports"
)

// Resolution is the terminal state of the two-stage search.
type Resolution struct {
	Stage     domain.Stage
	Verdict   domain.Verdict
	Text      string
	Citations []domain.RawCitation
}

// AnswerResolver searches the corpus first and falls back to the web only
// when the corpus reports the question as in scope but unanswered.
type AnswerResolver struct {
	corpus   ports.CorpusSearcher
	web      ports.WebSearcher
	corpusID string
	logger   *slog.Logger
}

func NewAnswerResolver(corpus ports.CorpusSearcher, web ports.WebSearcher, corpusID string, logger *slog.Logger) *AnswerResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerResolver{
		corpus:   corpus,
		web:      web,
		corpusID: strings.TrimSpace(corpusID),
		logger:   logger,
	}
}

func (r *AnswerResolver) Resolve(ctx context.Context, query domain.Query) (Resolution, error) {
	if r.corpusID == "" {
		return Resolution{}, domain.WrapError(domain.ErrMissingConfig, "resolve answer", fmt.Errorf("corpus identifier is not configured"))
	}
	if r.corpus == nil {
		return Resolution{}, domain.WrapError(domain.ErrMissingConfig, "resolve answer", fmt.Errorf("corpus search is not configured"))
	}

	start := time.Now()
	outcome, err := r.corpus.SearchCorpus(ctx, query, r.corpusID)
	if err != nil {
		return Resolution{}, fmt.Errorf("search corpus: %w", err)
	}
	r.logger.Info("corpus_search_completed",
		"verdict", string(outcome.Verdict),
		"citations", len(outcome.Citations),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	switch outcome.Verdict {
	case domain.VerdictDenied:
		return Resolution{Stage: domain.StageCorpus, Verdict: domain.VerdictDenied}, nil
	case domain.VerdictNotFound:
		return r.searchWeb(ctx, query)
	case domain.VerdictAnswered:
		text := strings.TrimSpace(outcome.Text)
		if text == "" {
			return Resolution{}, domain.WrapError(domain.ErrNoAnswerText, "search corpus", fmt.Errorf("empty answer"))
		}
		return Resolution{
			Stage:     domain.StageCorpus,
			Verdict:   domain.VerdictAnswered,
			Text:      text,
			Citations: domain.OnlyCitations(outcome.Citations, domain.CitationFile),
		}, nil
	default:
		return Resolution{}, domain.WrapError(domain.ErrMalformedResponse, "search corpus", fmt.Errorf("unknown verdict %q", outcome.Verdict))
	}
}

func (r *AnswerResolver) searchWeb(ctx context.Context, query domain.Query) (Resolution, error) {
	if r.web == nil {
		return Resolution{}, domain.WrapError(domain.ErrMissingConfig, "search web", fmt.Errorf("web search is not configured"))
	}

	start := time.Now()
	outcome, err := r.web.SearchWeb(ctx, query)
	if err != nil {
		return Resolution{}, fmt.Errorf("search web: %w", err)
	}
	text := strings.TrimSpace(outcome.Text)
	if text == "" {
		return Resolution{}, domain.WrapError(domain.ErrNoAnswerText, "search web", fmt.Errorf("empty answer"))
	}
	r.logger.Info("web_search_completed",
		"citations", len(outcome.Citations),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return Resolution{
		Stage:     domain.StageWeb,
		Verdict:   domain.VerdictAnswered,
		Text:      text,
		Citations: domain.OnlyCitations(outcome.Citations, domain.CitationWeb),
	}, nil
}
