package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/observability/metrics"
)

type answerServiceFake struct {
	question string
	result   domain.ResolutionResult
}

func (f *answerServiceFake) Resolve(_ context.Context, question string) domain.ResolutionResult {
	f.question = question
	return f.result
}

type referenceLookupFake struct {
	urls      map[string]string
	reloadN   int
	reloadErr error
}

func (f *referenceLookupFake) Resolve(_ context.Context, filename string) (string, bool) {
	url, ok := f.urls[filename]
	return url, ok
}

func (f *referenceLookupFake) Reload(context.Context) (int, error) {
	return f.reloadN, f.reloadErr
}

func newTestHandler(t *testing.T, answers *answerServiceFake, refs *referenceLookupFake, opts RouterOptions) http.Handler {
	t.Helper()
	router, err := NewRouter(answers, refs, opts)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestResolveAnswerReturnsResult(t *testing.T) {
	link := "https://vinuni.edu.vn/dorm"
	answers := &answerServiceFake{result: domain.ResolutionResult{
		Answer:    "Quiet hours are 10pm-7am.",
		Citations: []domain.EnrichedCitation{{Title: "dorm-handbook", URL: &link}, {Title: "faq"}},
	}}
	handler := newTestHandler(t, answers, &referenceLookupFake{}, RouterOptions{})

	res := postJSON(handler, "/v1/answers", `{"question":"What are the dormitory rules?"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if answers.question != "What are the dormitory rules?" {
		t.Fatalf("unexpected question forwarded: %q", answers.question)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	citations := body["citations"].([]any)
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %v", citations)
	}
	second := citations[1].(map[string]any)
	if url, present := second["url"]; !present || url != nil {
		t.Fatalf("expected explicit null url, got %v", second)
	}
}

func TestResolveAnswerRejectsContractViolations(t *testing.T) {
	handler := newTestHandler(t, &answerServiceFake{}, &referenceLookupFake{}, RouterOptions{})

	cases := map[string]string{
		"missing question": `{}`,
		"wrong type":       `{"question": 42}`,
		"unknown field":    `{"question": "q", "limit": 5}`,
		"not json":         `question=q`,
	}
	for name, body := range cases {
		res := postJSON(handler, "/v1/answers", body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, res.Code)
		}
	}
}

func TestResolveAnswerBlankQuestionReachesService(t *testing.T) {
	answers := &answerServiceFake{result: domain.TextResult(domain.EmptyQuestionMessage)}
	handler := newTestHandler(t, answers, &referenceLookupFake{}, RouterOptions{})

	res := postJSON(handler, "/v1/answers", `{"question":"   "}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), domain.EmptyQuestionMessage) {
		t.Fatalf("expected empty-question message, got %s", res.Body.String())
	}
}

func TestGetReference(t *testing.T) {
	refs := &referenceLookupFake{urls: map[string]string{"dorm handbook.pdf": "https://vinuni.edu.vn/dorm"}}
	handler := newTestHandler(t, &answerServiceFake{}, refs, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/references/dorm%20handbook.pdf", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "https://vinuni.edu.vn/dorm") {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/references/missing.pdf", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestReloadReferences(t *testing.T) {
	refs := &referenceLookupFake{reloadN: 12}
	handler := newTestHandler(t, &answerServiceFake{}, refs, RouterOptions{})

	res := postJSON(handler, "/v1/references/reload", "")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"entries":12`) {
		t.Fatalf("unexpected reload response %d: %s", res.Code, res.Body.String())
	}

	refs.reloadErr = domain.WrapError(domain.ErrTemporary, "sheets.values_get", errors.New("503"))
	refs.reloadN = 0
	res = postJSON(handler, "/v1/references/reload", "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestHealthzIncludesBreakers(t *testing.T) {
	handler := newTestHandler(t, &answerServiceFake{}, &referenceLookupFake{}, RouterOptions{
		Health: func() map[string]string { return map[string]string{"openai.file_search": "closed"} },
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "openai.file_search") {
		t.Fatalf("unexpected healthz response %d: %s", res.Code, res.Body.String())
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := newTestHandler(t, &answerServiceFake{result: domain.TextResult("ok")}, &referenceLookupFake{}, RouterOptions{Metrics: m})

	postJSON(handler, "/v1/answers", `{"question":"q"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if !bytes.Contains(res.Body.Bytes(), []byte(`vinuni_http_requests_total{method="POST",path="/v1/answers",service="api",status="200"} 1`)) {
		t.Fatalf("expected request counter in metrics output:\n%s", res.Body.String())
	}
}

func TestOpenAPIDocumentServed(t *testing.T) {
	handler := newTestHandler(t, &answerServiceFake{}, &referenceLookupFake{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "/v1/answers") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}
}
