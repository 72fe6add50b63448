package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/core/ports"
)

const (
	AskToolName       = "ask_vinuni"
	ReferenceToolName = "lookup_reference"
)

type Server struct {
	answers    ports.AnswerService
	references ports.ReferenceLookup
	logger     *slog.Logger
}

func New(answers ports.AnswerService, references ports.ReferenceLookup, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{answers: answers, references: references, logger: logger}
}

// MCPServer registers the tools on a new stdio-capable MCP server.
func (s *Server) MCPServer(name, version string) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Answers questions about VinUni from its curated knowledge base, falling back to web search, with citations."),
	)

	mcpServer.AddTool(mcp.NewTool(AskToolName,
		mcp.WithDescription("Answer a question about VinUni. Returns the answer text and its citations."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question in natural language."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	), s.handleAsk)

	if s.references != nil {
		mcpServer.AddTool(mcp.NewTool(ReferenceToolName,
			mcp.WithDescription("Look up the reference URL of a knowledge base document by its filename."),
			mcp.WithString("filename",
				mcp.Required(),
				mcp.Description("Document filename as it appears in a citation, e.g. handbook.pdf."),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		), s.handleReference)
	}
	return mcpServer
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.answers.Resolve(ctx, question)
	body, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("mcp_result_marshal_failed", "error", err)
		return mcp.NewToolResultText(result.Answer), nil
	}
	return mcp.NewToolResultStructured(result, string(body)), nil
}

type referenceResult struct {
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
	Found    bool   `json:"found"`
}

func (s *Server) handleReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return mcp.NewToolResultError(domain.WrapError(domain.ErrInvalidInput, "lookup reference", errors.New("filename is empty")).Error()), nil
	}

	url, ok := s.references.Resolve(ctx, filename)
	out := referenceResult{Filename: filename, URL: url, Found: ok}
	text := "no reference link for " + filename
	if ok {
		text = url
	}
	return mcp.NewToolResultStructured(out, text), nil
}
