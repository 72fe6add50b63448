package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ResilienceMetrics implements resilience.Observer.
type ResilienceMetrics struct {
	service string

	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewResilienceMetrics(service string, registerer prometheus.Registerer) *ResilienceMetrics {
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Total retried attempts of outbound calls by operation and attempt number.",
		},
		[]string{"service", "operation", "attempt"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state by operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(retriesTotal, breakerState)

	return &ResilienceMetrics{
		service:      service,
		retriesTotal: retriesTotal,
		breakerState: breakerState,
	}
}

func (m *ResilienceMetrics) ObserveRetry(operation string, attempt int) {
	m.retriesTotal.WithLabelValues(m.service, operation, strconv.Itoa(attempt)).Inc()
}

func (m *ResilienceMetrics) ObserveBreakerState(operation, state string) {
	m.breakerState.WithLabelValues(m.service, operation).Set(breakerStateValue(state))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
