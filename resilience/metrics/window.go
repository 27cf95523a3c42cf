// Package metrics implements the count-based sliding window of call
// outcomes that the circuit breaker trips on, and the latency ring buffer
// the adaptive timeout derives percentiles from.
//
// Grounded on the teacher's atomic-counter idioms (server.Server.shutdown
// atomic.Bool, transport.ClientTransport.seq) and the ag-ui resilience
// reference's CircuitBreaker counters — but the trim rule below is
// spec-exact rather than a free-running counter.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Window is a count-based sliding window of call outcomes: total calls,
// failed calls, and slow calls. When totalCalls exceeds the configured
// size, all three counters are scaled down proportionally so that
// totalCalls == size again — this preserves rates without needing
// timestamps, at the cost of being an approximation rather than a true
// time window (acceptable per spec's own note on this).
type Window struct {
	size int64

	total  atomic.Int64
	failed atomic.Int64
	slow   atomic.Int64

	trimMu sync.Mutex // guards only the trim step; counters are atomic on their own
}

// New creates a Window with the given sliding window size (spec default 100).
func New(size int) *Window {
	if size <= 0 {
		size = 100
	}
	return &Window{size: int64(size)}
}

// RecordSuccess records a successful call, optionally marking it slow.
func (w *Window) RecordSuccess(slow bool) {
	w.total.Add(1)
	if slow {
		w.slow.Add(1)
	}
	w.trim()
}

// RecordFailure records a failed call.
func (w *Window) RecordFailure() {
	w.total.Add(1)
	w.failed.Add(1)
	w.trim()
}

// trim scales all counters down proportionally once totalCalls exceeds
// size, preserving the observed rates.
func (w *Window) trim() {
	if w.total.Load() <= w.size {
		return
	}
	w.trimMu.Lock()
	defer w.trimMu.Unlock()

	total := w.total.Load()
	if total <= w.size {
		return
	}
	failed := w.failed.Load()
	slow := w.slow.Load()

	ratio := float64(w.size) / float64(total)
	w.total.Store(w.size)
	w.failed.Store(int64(float64(failed) * ratio))
	w.slow.Store(int64(float64(slow) * ratio))
}

// Snapshot is a point-in-time read of the window's counters and rates.
type Snapshot struct {
	TotalCalls   int64
	FailedCalls  int64
	SlowCalls    int64
	FailureRate  float64 // in [0, 1]
	SlowCallRate float64 // in [0, 1]
}

// Snapshot reads the current counters and derives rates. With zero total
// calls, both rates are reported as 0.
func (w *Window) Snapshot() Snapshot {
	total := w.total.Load()
	failed := w.failed.Load()
	slow := w.slow.Load()

	s := Snapshot{TotalCalls: total, FailedCalls: failed, SlowCalls: slow}
	if total > 0 {
		s.FailureRate = float64(failed) / float64(total)
		s.SlowCallRate = float64(slow) / float64(total)
	}
	return s
}

// Reset clears all counters, used when the breaker transitions to CLOSED.
func (w *Window) Reset() {
	w.total.Store(0)
	w.failed.Store(0)
	w.slow.Store(0)
}
