// Package gemini implements web search with Gemini Google Search grounding.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/resilience"
)

const (
	DefaultModel = "gemini-2.5-flash"
	operation    = "gemini.web_search"
)

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

type WebSearcher struct {
	client *genai.Client
	model  string
	exec   *resilience.Executor
}

func NewWebSearcher(ctx context.Context, opts Options) (*WebSearcher, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrMissingConfig, "new gemini web searcher", fmt.Errorf("gemini api key is empty"))
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &WebSearcher{client: client, model: opts.Model, exec: opts.Executor}, nil
}

func (s *WebSearcher) SearchWeb(ctx context.Context, query domain.Query) (domain.SearchOutcome, error) {
	// Google Search grounding has no forced mode; ToolConfig only governs
	// function calling. The model decides whether to search.
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	var resp *genai.GenerateContentResponse
	err := s.exec.Execute(ctx, operation, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = s.client.Models.GenerateContent(callCtx, s.model, genai.Text(query.Prompt()), config)
		return callErr
	}, classifyGeminiError)
	if err != nil {
		return domain.SearchOutcome{}, wrapTemporaryIfNeeded(err)
	}

	text, citations, ok := groundedAnswer(resp)
	if !ok {
		return domain.SearchOutcome{}, domain.WrapError(domain.ErrNoAnswerText, "search web", fmt.Errorf("gemini returned no completed answer"))
	}
	return domain.SearchOutcome{
		Verdict:   domain.VerdictAnswered,
		Text:      text,
		Citations: citations,
	}, nil
}

// groundedAnswer reads the first candidate that finished normally and carries
// model text. Thought parts are ignored.
func groundedAnswer(resp *genai.GenerateContentResponse) (string, []domain.RawCitation, bool) {
	if resp == nil {
		return "", nil, false
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		if candidate.FinishReason != "" && candidate.FinishReason != genai.FinishReasonStop {
			continue
		}
		if candidate.Content.Role != "" && candidate.Content.Role != "model" {
			continue
		}

		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text.WriteString(part.Text)
		}
		answer := strings.TrimSpace(text.String())
		if answer == "" {
			continue
		}

		citations := make([]domain.RawCitation, 0)
		if meta := candidate.GroundingMetadata; meta != nil {
			for _, chunk := range meta.GroundingChunks {
				if chunk == nil || chunk.Web == nil || strings.TrimSpace(chunk.Web.URI) == "" {
					continue
				}
				citations = append(citations, domain.WebCitation(strings.TrimSpace(chunk.Web.URI), strings.TrimSpace(chunk.Web.Title)))
			}
		}
		return answer, citations, true
	}
	return "", nil, false
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsAttemptTimeout(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if code, ok := apiErrorCode(err); ok {
		switch code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func wrapTemporaryIfNeeded(err error) error {
	if code, ok := apiErrorCode(err); ok && (code == http.StatusUnauthorized || code == http.StatusForbidden) {
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	if classifyGeminiError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
