package loadbalance

import "fmt"

// DefaultPredictorURL matches the configuration surface's documented
// default (spec.md §6, rpc.loadbalancer.ai.service.url).
const DefaultPredictorURL = "http://localhost:8000/predict"

// Factory resolves a named balancer strategy to a process-wide singleton
// instance, per spec.md §4.6's pluggability note. The teacher has no
// factory of its own; this mirrors the "pluggable by name" shape of its
// codec.Get function.
type Factory struct {
	instances map[string]Balancer
}

// NewFactory creates a factory pre-registered with "random" (round robin)
// and "aipredictive" (against predictorURL).
func NewFactory(predictorURL string) *Factory {
	if predictorURL == "" {
		predictorURL = DefaultPredictorURL
	}
	return &Factory{
		instances: map[string]Balancer{
			"random":       &RoundRobinBalancer{},
			"aipredictive": NewPredictiveBalancer(predictorURL),
		},
	}
}

// Register adds or replaces a user-provided named strategy.
func (f *Factory) Register(name string, b Balancer) {
	f.instances[name] = b
}

// Get resolves name to its singleton instance. An empty name returns the
// "random" default; an unknown non-empty name is a configuration error.
func (f *Factory) Get(name string) (Balancer, error) {
	if name == "" {
		name = "random"
	}
	b, ok := f.instances[name]
	if !ok {
		return nil, fmt.Errorf("loadbalance: unknown balancer strategy %q", name)
	}
	return b, nil
}

// Stop releases any background resources (e.g. the predictive balancer's
// refresh task) held by registered instances.
func (f *Factory) Stop() {
	for _, b := range f.instances {
		if p, ok := b.(*PredictiveBalancer); ok {
			p.Stop()
		}
	}
}
