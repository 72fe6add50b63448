package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetricsObserveResolution(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPipelineMetrics("api", registry)

	m.ObserveResolution("answered_corpus", 2, 150*time.Millisecond)
	m.ObserveResolution("answered_corpus", 0, 100*time.Millisecond)
	m.ObserveResolution("denied", 0, 50*time.Millisecond)

	if got := testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("api", "answered_corpus")); got != 2 {
		t.Fatalf("expected 2 corpus answers, got %v", got)
	}
	if got := testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("api", "denied")); got != 1 {
		t.Fatalf("expected 1 denial, got %v", got)
	}
}

func TestPipelineMetricsObserveDirectoryLoad(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPipelineMetrics("api", registry)

	m.ObserveDirectoryLoad(42, nil)
	if got := testutil.ToFloat64(m.directoryEntries); got != 42 {
		t.Fatalf("expected 42 entries, got %v", got)
	}
	m.ObserveDirectoryLoad(0, errors.New("sheets unreachable"))
	if got := testutil.ToFloat64(m.directoryEntries); got != 0 {
		t.Fatalf("expected empty directory after failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.directoryLoads.WithLabelValues("api", "error")); got != 1 {
		t.Fatalf("expected one failed load, got %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/references/dorm-handbook.pdf": "/v1/references/{filename}",
		"/v1/references/reload":            "/v1/references/reload",
		"/v1/answers":                      "/v1/answers",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResilienceMetricsTrackBreakerState(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewResilienceMetrics("worker", registry)

	m.ObserveBreakerState("sheets.values_get", "closed")
	m.ObserveBreakerState("sheets.values_get", "open")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("worker", "sheets.values_get")); got != 2 {
		t.Fatalf("expected open state 2, got %v", got)
	}
	m.ObserveBreakerState("sheets.values_get", "half-open")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("worker", "sheets.values_get")); got != 1 {
		t.Fatalf("expected half-open state 1, got %v", got)
	}

	m.ObserveRetry("openai.file_search", 1)
	m.ObserveRetry("openai.file_search", 1)
	if got := testutil.ToFloat64(m.retriesTotal.WithLabelValues("worker", "openai.file_search", "1")); got != 2 {
		t.Fatalf("expected 2 first-attempt retries, got %v", got)
	}
}
