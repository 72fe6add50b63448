package resilience

import (
	"log/slog"
	"time"
)

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// Operations overrides retry settings per operation name, e.g.
	// "sheets.values_get".
	Operations map[string]OperationPolicy

	Observer Observer
	Logger   *slog.Logger
}

// OperationPolicy overrides Config for one operation. Zero fields keep the
// executor-wide value.
type OperationPolicy struct {
	RetryMaxAttempts int
	// AttemptTimeout bounds each attempt, for clients without their own
	// transport timeout.
	AttemptTimeout time.Duration
}

// Observer receives retry and breaker events, typically to export metrics.
type Observer interface {
	ObserveRetry(operation string, attempt int)
	ObserveBreakerState(operation, state string)
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	if out.Observer == nil {
		out.Observer = noopObserver{}
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// operation resolves the effective retry settings for name.
func (c Config) operation(name string) OperationPolicy {
	policy := c.Operations[name]
	if policy.RetryMaxAttempts <= 0 {
		policy.RetryMaxAttempts = c.RetryMaxAttempts
	}
	return policy
}

type noopObserver struct{}

func (noopObserver) ObserveRetry(string, int)           {}
func (noopObserver) ObserveBreakerState(string, string) {}
