package loadbalance

import (
	"context"
	"math/rand"
	"time"

	"airpc/registry"
	"airpc/resilience/breaker"
)

// PredictiveBalancer fuses a periodically-refreshed external health score
// (the weight cache) with locally observed breaker/error-rate signals to
// pick an endpoint, per spec.md §4.6. Factory registers it under the name
// "aipredictive".
//
// The local breaker registry here is keyed by bare "host:port", not
// "service@host:port" — a single balancer instance is shared across
// services, and endpoint health for routing purposes is treated as
// service-agnostic. The call pipeline's own breaker (service-scoped) is a
// separate instance.
type PredictiveBalancer struct {
	cache     *weightCache
	predictor *Predictor
	breakers  *breaker.Registry

	cancel context.CancelFunc
}

// NewPredictiveBalancer creates a balancer that polls predictorURL on the
// spec's 5s-initial-delay/10s-period schedule. Call Stop to cancel the
// background refresh task during graceful shutdown.
func NewPredictiveBalancer(predictorURL string) *PredictiveBalancer {
	ctx, cancel := context.WithCancel(context.Background())
	b := &PredictiveBalancer{
		cache:     newWeightCache(),
		predictor: NewPredictor(predictorURL),
		breakers:  breaker.NewRegistry(breaker.DefaultConfig()),
		cancel:    cancel,
	}
	b.cache.startRefreshLoop(ctx, b.predictor)
	return b
}

// Stop cancels the background refresh task.
func (b *PredictiveBalancer) Stop() {
	b.cancel()
}

// BreakerFor exposes the balancer's local per-endpoint breaker, the one
// RecordResult feeds and Pick's local multiplier reads.
func (b *PredictiveBalancer) BreakerFor(addr string) *breaker.Breaker {
	return b.breakers.Get(addr)
}

// WeightSnapshot returns the currently published endpoint → score map, for
// debug introspection.
func (b *PredictiveBalancer) WeightSnapshot() map[string]float64 {
	return b.cache.snapshot()
}

// BreakerSnapshot returns the state of every locally tracked per-endpoint
// breaker, for debug introspection.
func (b *PredictiveBalancer) BreakerSnapshot() map[string]breaker.State {
	return b.breakers.Snapshot()
}

func (b *PredictiveBalancer) Name() string { return "aipredictive" }

// RecordResult feeds a completed call's outcome into this balancer's own
// per-endpoint breaker, the one localMultiplier reads in Pick. Without this,
// the breaker registered per addr never sees real traffic and the local
// multiplier half of the fused-weight algorithm stays permanently inert.
// The call pipeline calls this once per attempt, alongside its own
// service-scoped breaker's RecordSuccess/RecordFailure.
func (b *PredictiveBalancer) RecordResult(addr string, err error, duration time.Duration) {
	br := b.breakers.Get(addr)
	if err != nil {
		br.RecordFailure()
		return
	}
	br.RecordSuccess(duration)
}

// Pick implements the selection algorithm of spec.md §4.6.
func (b *PredictiveBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, errNoInstances
	}
	if len(instances) == 1 {
		return &instances[0], nil
	}

	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr()
	}
	b.cache.setKnownAddresses(addrs)

	snapshot := b.cache.snapshot()
	if len(snapshot) == 0 {
		// First-call warmup: fetch synchronously rather than wait for the
		// background scheduler's initial 5s delay.
		b.cache.refresh(context.Background(), b.predictor)
		snapshot = b.cache.snapshot()
	}

	finalWeights := make([]float64, len(instances))
	sum := 0.0
	for i, inst := range instances {
		addr := inst.Addr()
		cached, ok := snapshot[addr]
		if !ok {
			cached = 1.0
		}
		mult := b.localMultiplier(addr)
		fw := cached * mult
		finalWeights[i] = fw
		sum += fw
	}

	if sum <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	r := rand.Float64() * sum
	cumulative := 0.0
	for i, fw := range finalWeights {
		cumulative += fw
		if cumulative > r {
			return &instances[i], nil
		}
	}
	// Rounding corner case: last-bucket tie-break by returning the last entry.
	return &instances[len(instances)-1], nil
}

// localMultiplier implements the step-5 table of spec.md §4.6.
func (b *PredictiveBalancer) localMultiplier(addr string) float64 {
	br := b.breakers.Get(addr)
	switch br.State() {
	case breaker.Open:
		return 0.0
	case breaker.HalfOpen:
		return multiplierTail(br, 0.3)
	default:
		return multiplierTail(br, 1.0)
	}
}

func multiplierTail(br *breaker.Breaker, base float64) float64 {
	snap := br.Snapshot()
	m := base
	switch {
	case snap.FailureRate > 0.5:
		m *= 0.2
	case snap.FailureRate > 0.2:
		m *= 0.5
	case snap.FailureRate > 0.1:
		m *= 0.8
	}
	switch {
	case snap.SlowCallRate > 0.5:
		m *= 0.5
	case snap.SlowCallRate > 0.2:
		m *= 0.8
	}
	return m
}
