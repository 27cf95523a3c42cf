// Package breaker implements the per-endpoint three-state circuit breaker
// of spec.md §4.4: CLOSED admits everything, OPEN rejects everything until
// a cool-down elapses, HALF_OPEN admits a bounded number of probes.
//
// Grounded on the ag-ui resilience.go reference's CircuitBreaker (state +
// atomic counters + mutex-guarded transitions) and the teacher's
// server.Server.shutdown atomic.Bool idiom for single-word state reads.
package breaker

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"airpc/resilience/metrics"
)

// State is the circuit breaker's admission state.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds the breaker's tunables, with spec.md §4.4 defaults.
type Config struct {
	FailureRateThreshold       float64       // 0..1, default 0.5
	SlowCallRateThreshold      float64       // 0..1, default 1.0
	SlowCallDurationThreshold  time.Duration // default 3000ms
	WaitDurationInOpenState    time.Duration // default 30000ms
	SlidingWindowSize          int           // default 100
	MinimumNumberOfCalls       int64         // default 10
	PermittedCallsInHalfOpen   int64         // default 5
}

// DefaultConfig returns the spec.md §4.4 defaults.
func DefaultConfig() Config {
	return Config{
		FailureRateThreshold:      0.5,
		SlowCallRateThreshold:     1.0,
		SlowCallDurationThreshold: 3000 * time.Millisecond,
		WaitDurationInOpenState:   30000 * time.Millisecond,
		SlidingWindowSize:         100,
		MinimumNumberOfCalls:      10,
		PermittedCallsInHalfOpen:  5,
	}
}

// Breaker is a single endpoint's circuit breaker.
type Breaker struct {
	key    string
	config Config
	window *metrics.Window

	state              atomic.Int32
	lastTransitionUnix atomic.Int64 // unix nanos
	halfOpenCallCount  atomic.Int64

	mu sync.Mutex // serializes state transitions
}

// New creates a breaker for the given endpoint key, initial state CLOSED.
func New(key string, config Config) *Breaker {
	b := &Breaker{key: key, config: config, window: metrics.New(config.SlidingWindowSize)}
	b.lastTransitionUnix.Store(time.Now().UnixNano())
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// AllowRequest implements the admission rules of spec.md §4.4.
func (b *Breaker) AllowRequest() bool {
	switch b.State() {
	case Closed:
		return true
	case Open:
		last := time.Unix(0, b.lastTransitionUnix.Load())
		if time.Since(last) >= b.config.WaitDurationInOpenState {
			b.mu.Lock()
			defer b.mu.Unlock()
			// Re-check under lock: another goroutine may have already transitioned.
			if b.State() == Open && time.Since(time.Unix(0, b.lastTransitionUnix.Load())) >= b.config.WaitDurationInOpenState {
				b.transitionTo(HalfOpen)
				b.halfOpenCallCount.Store(0)
				return true
			}
			return b.State() != Open
		}
		return false
	case HalfOpen:
		count := b.halfOpenCallCount.Add(1)
		return count <= b.config.PermittedCallsInHalfOpen
	default:
		return false
	}
}

// RecordSuccess records a successful call of the given duration and applies
// the HALF_OPEN -> CLOSED transition rule.
func (b *Breaker) RecordSuccess(duration time.Duration) {
	slow := duration >= b.config.SlowCallDurationThreshold
	b.window.RecordSuccess(slow)

	if b.State() != HalfOpen {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != HalfOpen {
		return
	}
	if b.halfOpenCallCount.Load() >= b.config.PermittedCallsInHalfOpen {
		snap := b.window.Snapshot()
		if snap.FailureRate < b.config.FailureRateThreshold {
			b.transitionTo(Closed)
			b.window.Reset()
		}
	}
}

// RecordFailure records a failed call and applies the trip-to-OPEN rules.
func (b *Breaker) RecordFailure() {
	b.window.RecordFailure()

	switch b.State() {
	case Closed:
		snap := b.window.Snapshot()
		if snap.TotalCalls >= b.config.MinimumNumberOfCalls &&
			(snap.FailureRate >= b.config.FailureRateThreshold || snap.SlowCallRate >= b.config.SlowCallRateThreshold) {
			b.mu.Lock()
			if b.State() == Closed {
				b.transitionTo(Open)
			}
			b.mu.Unlock()
		}
	case HalfOpen:
		b.mu.Lock()
		if b.State() == HalfOpen {
			b.transitionTo(Open)
		}
		b.mu.Unlock()
	}
}

// ForceState sets the state directly (for tests). Setting CLOSED also
// resets the metrics window.
func (b *Breaker) ForceState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(s)
	if s == Closed {
		b.window.Reset()
	}
}

// Snapshot returns the current metrics window snapshot, for introspection.
func (b *Breaker) Snapshot() metrics.Snapshot {
	return b.window.Snapshot()
}

// Key returns the endpoint key this breaker governs.
func (b *Breaker) Key() string { return b.key }

// transitionTo must be called with mu held. It logs the transition once.
func (b *Breaker) transitionTo(s State) {
	old := State(b.state.Load())
	if old == s {
		return
	}
	b.state.Store(int32(s))
	b.lastTransitionUnix.Store(time.Now().UnixNano())
	log.Printf("breaker[%s]: %s -> %s", b.key, old, s)
}
