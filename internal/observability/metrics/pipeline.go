package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics implements ports.ResolutionObserver.
type PipelineMetrics struct {
	service string

	resolutionsTotal *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	citations        *prometheus.HistogramVec
	directoryLoads   *prometheus.CounterVec
	directoryEntries prometheus.Gauge
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	resolutionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "resolutions_total",
			Help:      "Total resolved questions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "resolution_duration_seconds",
			Help:      "Question resolution duration in seconds by outcome.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "outcome"},
	)
	citations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "citations",
			Help:      "Distribution of citations per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	directoryLoads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reference_directory",
			Name:      "loads_total",
			Help:      "Total reference directory loads by status.",
		},
		[]string{"service", "status"},
	)
	directoryEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reference_directory",
			Name:      "entries",
			Help:      "Number of filename to URL entries currently loaded.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registerer.MustRegister(resolutionsTotal, duration, citations, directoryLoads, directoryEntries)

	return &PipelineMetrics{
		service:          service,
		resolutionsTotal: resolutionsTotal,
		duration:         duration,
		citations:        citations,
		directoryLoads:   directoryLoads,
		directoryEntries: directoryEntries,
	}
}

func (m *PipelineMetrics) ObserveResolution(outcome string, citations int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.resolutionsTotal.WithLabelValues(m.service, outcome).Inc()
	m.duration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
	if citations > 0 {
		m.citations.WithLabelValues(m.service).Observe(float64(citations))
	}
}

func (m *PipelineMetrics) ObserveDirectoryLoad(entries int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.directoryLoads.WithLabelValues(m.service, status).Inc()
	m.directoryEntries.Set(float64(entries))
}
