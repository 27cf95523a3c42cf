// Package timeout implements the per-endpoint adaptive call timeout of
// spec.md §4.5: the timeout tracks P99 latency and clamps it into a safe
// range, falling back to a fixed default until enough samples exist.
//
// Grounded on loadbalance/consistent_hash.go's sorted-slice percentile idiom
// (reused here via resilience/metrics.LatencyWindow) and the teacher's
// atomic-counter idiom for lock-free reads on the hot call path.
package timeout

import (
	"sync/atomic"
	"time"

	"airpc/resilience/metrics"
)

const (
	// DefaultTimeout is used until minimumSamples latency observations exist.
	DefaultTimeout = 10000 * time.Millisecond
	MinTimeout     = 100 * time.Millisecond
	MaxTimeout     = 30000 * time.Millisecond

	// Multiplier applied to observed P99 latency to derive the timeout.
	p99Multiplier = 1.5

	defaultCapacity      = 1000
	defaultMinimumSample = 10
)

// Timeout tracks a single endpoint's adaptive timeout.
type Timeout struct {
	latency        *metrics.LatencyWindow
	minimumSamples int64

	current atomic.Int64 // nanoseconds, read lock-free on the hot path
}

// New creates a Timeout with the spec defaults: ring buffer capacity 1000,
// minimum 10 samples before the adaptive value is trusted.
func New() *Timeout {
	t := &Timeout{
		latency:        metrics.NewLatencyWindow(defaultCapacity),
		minimumSamples: defaultMinimumSample,
	}
	t.current.Store(int64(DefaultTimeout))
	return t
}

// RecordLatency records an observed call latency (ms) and recomputes the
// adaptive timeout from the updated P99.
func (t *Timeout) RecordLatency(latencyMs int64) {
	t.latency.Record(latencyMs)
	if int64(t.latency.Count()) < t.minimumSamples {
		return
	}

	p99 := t.latency.Percentile(0.99)
	adaptive := time.Duration(float64(p99)*p99Multiplier) * time.Millisecond
	clamped := clamp(adaptive, MinTimeout, MaxTimeout)
	t.current.Store(int64(clamped))
}

// Timeout returns the currently effective timeout.
func (t *Timeout) Timeout() time.Duration {
	return time.Duration(t.current.Load())
}

// Reset clears recorded latencies and reverts to the default timeout.
func (t *Timeout) Reset() {
	t.latency.Reset()
	t.current.Store(int64(DefaultTimeout))
}

func clamp(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
