package openai

import (
	"strings"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

type responsesRequest struct {
	Model        string          `json:"model"`
	Input        string          `json:"input"`
	Tools        []responsesTool `json:"tools"`
	ToolChoice   *toolChoice     `json:"tool_choice,omitempty"`
	MaxToolCalls int             `json:"max_tool_calls,omitempty"`
}

type responsesTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

type toolChoice struct {
	Type string `json:"type"`
}

type responsesResponse struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Output []outputItem   `json:"output"`
	Error  *responseError `json:"error,omitempty"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type outputItem struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Status  string          `json:"status"`
	Content []outputContent `json:"content"`
}

type outputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text"`
	Annotations []annotation `json:"annotations"`
}

type annotation struct {
	Type     string `json:"type"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

type assistantMessage struct {
	Text      string
	Citations []domain.RawCitation
}

// assistantMessage reads the first completed assistant message. Tool call
// items and in-progress messages are skipped.
func (r responsesResponse) assistantMessage() (assistantMessage, bool) {
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" || item.Status != "completed" {
			continue
		}

		var text strings.Builder
		citations := make([]domain.RawCitation, 0)
		for _, part := range item.Content {
			if part.Type != "output_text" {
				continue
			}
			text.WriteString(part.Text)
			for _, note := range part.Annotations {
				if citation, ok := note.citation(); ok {
					citations = append(citations, citation)
				}
			}
		}
		if strings.TrimSpace(text.String()) == "" {
			return assistantMessage{}, false
		}
		return assistantMessage{Text: text.String(), Citations: citations}, true
	}
	return assistantMessage{}, false
}

func (a annotation) citation() (domain.RawCitation, bool) {
	switch a.Type {
	case "file_citation":
		name := strings.TrimSpace(a.Filename)
		if name == "" {
			name = strings.TrimSpace(a.FileID)
		}
		if name == "" {
			return domain.RawCitation{}, false
		}
		return domain.FileCitation(name), true
	case "url_citation":
		if strings.TrimSpace(a.URL) == "" {
			return domain.RawCitation{}, false
		}
		return domain.WebCitation(strings.TrimSpace(a.URL), strings.TrimSpace(a.Title)), true
	default:
		return domain.RawCitation{}, false
	}
}
