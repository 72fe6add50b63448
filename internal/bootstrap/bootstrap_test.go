package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/vinuni-assistant/internal/config"
	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

const corpusAnswer = `{
  "id": "resp_1",
  "status": "completed",
  "output": [
    {"id": "fs_1", "type": "file_search_call", "status": "completed"},
    {
      "id": "msg_1", "type": "message", "role": "assistant", "status": "completed",
      "content": [{
        "type": "output_text",
        "text": "Quiet hours are 10pm-7am.",
        "annotations": [
          {"type": "file_citation", "file_id": "file-1", "filename": "dorm-handbook.pdf"},
          {"type": "file_citation", "file_id": "file-2", "filename": "dorm-handbook.pdf"},
          {"type": "file_citation", "file_id": "file-3", "filename": "meal-plan.docx"}
        ]
      }]
    }
  ]
}`

func writeReferenceWorkbook(t *testing.T) string {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	rows := [][]any{
		{"Filename", "URL"},
		{"dorm-handbook.pdf", "https://policy.vinuni.edu.vn/dorm"},
	}
	for idx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error = %v", err)
		}
		if err := book.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "references.xlsx")
	if err := book.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func setTestEnv(t *testing.T, openAIURL, workbook, policyFile string) {
	t.Helper()
	t.Setenv("OPENAI_BASE_URL", openAIURL+"/v1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VECTOR_STORE_ID", "vs_campus")
	t.Setenv("WEB_SEARCH_PROVIDER", "openai")
	t.Setenv("REFERENCE_SOURCE", "xlsx")
	t.Setenv("REFERENCE_WORKBOOK_PATH", workbook)
	t.Setenv("REFERENCE_WORKBOOK_RANGE", "Sheet1!A:B")
	t.Setenv("POLICY_FILE", policyFile)
	t.Setenv("RETRY_INITIAL_BACKOFF_MS", "1")
	t.Setenv("BREAKER_ENABLED", "false")
}

func TestNewWiresPipelineEndToEnd(t *testing.T) {
	var calls atomic.Int32
	var input string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var payload struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		input = payload.Input
		_, _ = w.Write([]byte(corpusAnswer))
	}))
	defer server.Close()

	policyFile := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(policyFile, []byte("institution: VinUniversity\ntopics: [housing, dining]\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	setTestEnv(t, server.URL, writeReferenceWorkbook(t), policyFile)

	registry := prometheus.NewRegistry()
	app, err := New(context.Background(), config.Load(), Options{Service: "test", Registerer: registry})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result := app.Pipeline.Resolve(context.Background(), "What are the quiet hours?")
	if result.Answer != "Quiet hours are 10pm-7am." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one corpus call, got %d", calls.Load())
	}
	if !strings.HasPrefix(input, "What are the quiet hours?\n\n") || !strings.Contains(input, "housing, dining, etc.") {
		t.Fatalf("policy instruction missing from input: %q", input)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %+v", result.Citations)
	}
	first, second := result.Citations[0], result.Citations[1]
	if first.Title != "dorm-handbook" || first.URL == nil || *first.URL != "https://policy.vinuni.edu.vn/dorm" {
		t.Fatalf("unexpected first citation: %+v", first)
	}
	if second.Title != "meal-plan" || second.URL != nil {
		t.Fatalf("unexpected second citation: %+v", second)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected pipeline metrics to be registered")
	}
}

func TestNewDegradesWithoutReferenceSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(corpusAnswer))
	}))
	defer server.Close()

	setTestEnv(t, server.URL, filepath.Join(t.TempDir(), "missing.xlsx"), "")
	t.Setenv("REFERENCE_WORKBOOK_RANGE", "Sheet1!B:A")

	app, err := New(context.Background(), config.Load(), Options{Service: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result := app.Pipeline.Resolve(context.Background(), "What are the quiet hours?")
	if len(result.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %+v", result.Citations)
	}
	for _, citation := range result.Citations {
		if citation.URL != nil {
			t.Fatalf("expected no reference links, got %+v", citation)
		}
	}
	if _, err := app.References.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload to report the unavailable source")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Setenv("WEB_SEARCH_PROVIDER", "bing")
	if _, err := New(context.Background(), config.Load(), Options{}); err == nil {
		t.Fatalf("expected invalid provider to fail bootstrap")
	}
}

func TestNewWithoutCorpusIDReturnsUnableToSearch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(corpusAnswer))
	}))
	defer server.Close()

	setTestEnv(t, server.URL, writeReferenceWorkbook(t), "")
	t.Setenv("VECTOR_STORE_ID", "")

	app, err := New(context.Background(), config.Load(), Options{Service: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result := app.Pipeline.Resolve(context.Background(), "What are the quiet hours?")
	if result.Answer != domain.UnableToSearchMessage {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if calls.Load() != 0 {
		t.Fatalf("no search may run without a corpus id, got %d calls", calls.Load())
	}
}
