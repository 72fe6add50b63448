package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/resilience"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	return newTestSourceWithExecutor(t, handler, resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	}))
}

func newTestSourceWithExecutor(t *testing.T, handler http.HandlerFunc, exec *resilience.Executor) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	source, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-1",
		Range:         "Sheet1!A:B",
		Endpoint:      server.URL + "/",
		Executor:      exec,
		ClientOptions: []option.ClientOption{option.WithoutAuthentication()},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return source
}

func TestSourceFetchRows(t *testing.T) {
	var path string
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "range": "Sheet1!A1:B4",
		  "majorDimension": "ROWS",
		  "values": [["Filename", "URL"], ["dorm-handbook.pdf", "https://vinuni.edu.vn/dorm"], ["lonely.pdf"], [2025, true]]
		}`))
	})

	rows, err := source.FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if !strings.HasPrefix(path, "/v4/spreadsheets/sheet-1/values/") {
		t.Fatalf("unexpected request path: %s", path)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[1][0] != "dorm-handbook.pdf" || rows[1][1] != "https://vinuni.edu.vn/dorm" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
	if len(rows[2]) != 1 {
		t.Fatalf("short rows must be kept as-is, got %v", rows[2])
	}
	if rows[3][0] != "2025" || rows[3][1] != "true" {
		t.Fatalf("non-string cells must be stringified, got %v", rows[3])
	}
}

func TestSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"code": 503, "message": "backend error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"values": [["Filename", "URL"]]}`))
	})

	if _, err := source.FetchRows(context.Background()); err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry, got %d calls", calls.Load())
	}
}

func TestSourceRetriesHungAttempt(t *testing.T) {
	var calls atomic.Int32
	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		Operations: map[string]resilience.OperationPolicy{
			operation: {AttemptTimeout: 50 * time.Millisecond},
		},
	})
	source := newTestSourceWithExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": [["Filename", "URL"], ["dorm-handbook.pdf", "https://vinuni.edu.vn/dorm"]]}`))
	}, exec)

	rows, err := source.FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected hung attempt to be retried, got %d calls", calls.Load())
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestSourceCallerDeadlineIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := source.FetchRows(ctx); err == nil {
		t.Fatalf("expected deadline error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestSourcePermissionDenied(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "The caller does not have permission"}}`))
	})

	_, err := source.FetchRows(context.Background())
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNewRequiresSpreadsheet(t *testing.T) {
	_, err := New(context.Background(), Options{Range: "A:B"})
	if !domain.IsKind(err, domain.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
}
