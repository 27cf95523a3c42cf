package breaker

import "sync"

// Registry maps endpoint keys to breakers, created on demand. Within one
// Registry exactly one Breaker exists per key for the Registry's lifetime;
// separate Registry values (each Client and PredictiveBalancer makes its
// own) hold separate breakers.
type Registry struct {
	config Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a registry that lazily creates breakers with config.
func NewRegistry(config Config) *Registry {
	return &Registry{config: config, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key, creating it with the registry's config
// if this is the first request for that key.
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := New(key, r.config)
	r.breakers[key] = b
	return b
}

// Snapshot returns a copy of the registry's keys and states, for debug
// introspection.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.breakers))
	for k, b := range r.breakers {
		out[k] = b.State()
	}
	return out
}
