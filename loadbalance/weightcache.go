package loadbalance

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// weightCache holds the most recently fetched endpoint → score map,
// published via a single atomic pointer swap so a reader observes either
// the whole old map or the whole new map, never a mix (spec.md §5).
type weightCache struct {
	current atomic.Pointer[map[string]float64]

	mu             sync.Mutex
	knownAddresses []string
}

func newWeightCache() *weightCache {
	wc := &weightCache{}
	empty := map[string]float64{}
	wc.current.Store(&empty)
	return wc
}

// snapshot returns the currently published weight map.
func (wc *weightCache) snapshot() map[string]float64 {
	return *wc.current.Load()
}

// publish replaces the weight map atomically.
func (wc *weightCache) publish(m map[string]float64) {
	wc.current.Store(&m)
}

// setKnownAddresses records the latest observed input list, consumed by
// the background refresh task.
func (wc *weightCache) setKnownAddresses(addrs []string) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.knownAddresses = addrs
}

func (wc *weightCache) getKnownAddresses() []string {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	out := make([]string, len(wc.knownAddresses))
	copy(out, wc.knownAddresses)
	return out
}

// refresh fetches fresh scores from the predictor for the known addresses
// and publishes them, filling in 1.0 for any address the predictor didn't
// return. On failure it publishes uniform weights of 1.0, degrading
// selection to approximately uniform random (spec.md §4.6).
func (wc *weightCache) refresh(ctx context.Context, predictor *Predictor) {
	addrs := wc.getKnownAddresses()
	if len(addrs) == 0 {
		return
	}

	scores, err := predictor.Predict(ctx, addrs)
	if err != nil {
		log.Printf("loadbalance: predictor refresh failed, falling back to uniform weights: %v", err)
		uniform := make(map[string]float64, len(addrs))
		for _, a := range addrs {
			uniform[a] = 1.0
		}
		wc.publish(uniform)
		return
	}

	full := make(map[string]float64, len(addrs))
	for _, a := range addrs {
		if v, ok := scores[a]; ok {
			full[a] = v
		} else {
			full[a] = 1.0
		}
	}
	wc.publish(full)
}

// startRefreshLoop runs refresh on a daemon ticker: initial delay 5s,
// period 10s, stopping when ctx is cancelled.
func (wc *weightCache) startRefreshLoop(ctx context.Context, predictor *Predictor) {
	go func() {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}
		wc.refresh(ctx, predictor)

		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				wc.refresh(ctx, predictor)
			case <-ctx.Done():
				return
			}
		}
	}()
}
