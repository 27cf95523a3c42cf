// Package loadbalance provides load balancing strategies for distributing
// RPC requests across multiple service instances.
//
// Strategies implemented:
//   - RoundRobin:     stateless services, equal-capacity instances
//   - WeightedRandom: heterogeneous instances (different CPU/memory)
//   - ConsistentHash: stateful services requiring cache affinity
//   - AIPredictive:   fuses an external health score with local breaker
//     and error-rate signals (spec.md §4.6).
package loadbalance

import (
	"time"

	"airpc/registry"
)

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each RPC to select a target instance.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every RPC call — must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// RecordResult reports the terminal outcome of a call dispatched to
	// addr (as returned by ServiceInstance.Addr), so balancers that fuse
	// locally observed health signals into selection (spec.md §4.6's
	// local multiplier) can update their own bookkeeping. err is the
	// classified call error, nil on success; duration is the call's
	// measured latency (ignored on failure). Balancers with no local
	// health state are free to no-op.
	RecordResult(addr string, err error, duration time.Duration)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
