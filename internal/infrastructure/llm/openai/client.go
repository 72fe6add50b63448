package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o-mini"
	DefaultWebSearchTool = "web_search_preview"
)

type Options struct {
	BaseURL       string
	APIKey        string
	Model         string
	WebSearchTool string
	// ForceToolChoice makes the model call its tool exactly once instead of
	// answering from its own knowledge.
	ForceToolChoice bool
	Timeout         time.Duration
	Executor        *resilience.Executor
	HTTPClient      *http.Client
}

// Client talks to the Responses API.
type Client struct {
	baseURL         string
	apiKey          string
	model           string
	webSearchTool   string
	forceToolChoice bool
	httpClient      *http.Client
	exec            *resilience.Executor
}

func New(opts Options) *Client {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if strings.TrimSpace(opts.WebSearchTool) == "" {
		opts.WebSearchTool = DefaultWebSearchTool
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		apiKey:          strings.TrimSpace(opts.APIKey),
		model:           opts.Model,
		webSearchTool:   opts.WebSearchTool,
		forceToolChoice: opts.ForceToolChoice,
		httpClient:      opts.HTTPClient,
		exec:            opts.Executor,
	}
}

type CorpusSearcher struct {
	client *Client
}

func NewCorpusSearcher(client *Client) *CorpusSearcher {
	return &CorpusSearcher{client: client}
}

// SearchCorpus runs a file_search restricted to the vector store corpusID.
func (s *CorpusSearcher) SearchCorpus(ctx context.Context, query domain.Query, corpusID string) (domain.SearchOutcome, error) {
	corpusID = strings.TrimSpace(corpusID)
	if corpusID == "" {
		return domain.SearchOutcome{}, domain.WrapError(domain.ErrMissingConfig, "search corpus", fmt.Errorf("vector store id is empty"))
	}

	request := s.client.newRequest(query, responsesTool{
		Type:           "file_search",
		VectorStoreIDs: []string{corpusID},
	})
	reply, err := s.client.createResponse(ctx, "openai.file_search", request)
	if err != nil {
		return domain.SearchOutcome{}, err
	}

	message, ok := reply.assistantMessage()
	if !ok {
		return domain.SearchOutcome{}, domain.WrapError(domain.ErrNoAnswerText, "search corpus", fmt.Errorf("response %s has no completed assistant message", reply.ID))
	}
	return domain.ReadCorpusReply(message.Text, message.Citations), nil
}

type WebSearcher struct {
	client *Client
}

func NewWebSearcher(client *Client) *WebSearcher {
	return &WebSearcher{client: client}
}

func (s *WebSearcher) SearchWeb(ctx context.Context, query domain.Query) (domain.SearchOutcome, error) {
	request := s.client.newRequest(query, responsesTool{Type: s.client.webSearchTool})
	reply, err := s.client.createResponse(ctx, "openai.web_search", request)
	if err != nil {
		return domain.SearchOutcome{}, err
	}

	message, ok := reply.assistantMessage()
	if !ok || strings.TrimSpace(message.Text) == "" {
		return domain.SearchOutcome{}, domain.WrapError(domain.ErrNoAnswerText, "search web", fmt.Errorf("response %s has no completed assistant message", reply.ID))
	}
	return domain.SearchOutcome{
		Verdict:   domain.VerdictAnswered,
		Text:      strings.TrimSpace(message.Text),
		Citations: message.Citations,
	}, nil
}

func (c *Client) newRequest(query domain.Query, tool responsesTool) responsesRequest {
	request := responsesRequest{
		Model: c.model,
		Input: query.Prompt(),
		Tools: []responsesTool{tool},
	}
	if c.forceToolChoice {
		request.ToolChoice = &toolChoice{Type: tool.Type}
		request.MaxToolCalls = 1
	}
	return request
}

func (c *Client) createResponse(ctx context.Context, operation string, request responsesRequest) (responsesResponse, error) {
	if c.apiKey == "" {
		return responsesResponse{}, domain.WrapError(domain.ErrMissingConfig, operation, fmt.Errorf("openai api key is empty"))
	}

	var reply responsesResponse
	err := c.exec.Execute(ctx, operation, func(callCtx context.Context) error {
		reply = responsesResponse{}
		return c.postJSON(callCtx, "/responses", request, &reply, operation)
	}, classifyOpenAIError)
	if err != nil {
		return responsesResponse{}, wrapOpenAIError(operation, err)
	}
	if reply.Error != nil && reply.Error.Message != "" {
		return responsesResponse{}, domain.WrapError(domain.ErrMalformedResponse, operation, fmt.Errorf("response %s failed: %s", reply.ID, reply.Error.Message))
	}
	return reply, nil
}
