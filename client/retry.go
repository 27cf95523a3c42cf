package client

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds the client-side retry policy of spec.md §4.7/§4.8.
// Every tunable is a struct literal with a Default constructor, matching
// the teacher's "no parsed config file" idiom.
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFactor   float64
	RetryOnTimeout bool
}

// DefaultRetryConfig returns spec.md §4.7's defaults: maxAttempts=3,
// baseDelayMs=100, maxDelayMs=10000, multiplier=2, jitterFactor=0.5,
// retryOnTimeout=true.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       10000 * time.Millisecond,
		Multiplier:     2,
		JitterFactor:   0.5,
		RetryOnTimeout: true,
	}
}

// calculateDelay implements spec.md §4.8's default jittered backoff:
//
//	d     = baseDelayMs * multiplier^attempt, clamped to maxDelayMs
//	j     = d * jitterFactor * Uniform[-1, +1)
//	delay = max(0, round(d + j))
func (cfg RetryConfig) calculateDelay(attempt int) time.Duration {
	d := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	jitter := d * cfg.JitterFactor * (rand.Float64()*2 - 1)
	delay := d + jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(math.Round(delay))
}

// FullJitterDelay is the full-jitter variant exposed alongside the default:
// Uniform[0, min(maxDelay, baseDelay*multiplier^attempt)).
func (cfg RetryConfig) FullJitterDelay(attempt int) time.Duration {
	upper := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if upper > float64(cfg.MaxDelay) {
		upper = float64(cfg.MaxDelay)
	}
	return time.Duration(rand.Float64() * upper)
}

// DecorrelatedJitterDelay is the decorrelated-jitter variant exposed
// alongside the default: Uniform[baseDelay, min(maxDelay, 3*previousDelay)).
func (cfg RetryConfig) DecorrelatedJitterDelay(previousDelay time.Duration) time.Duration {
	upper := float64(3 * previousDelay)
	if upper > float64(cfg.MaxDelay) {
		upper = float64(cfg.MaxDelay)
	}
	if upper <= float64(cfg.BaseDelay) {
		upper = float64(cfg.BaseDelay) + 1
	}
	span := upper - float64(cfg.BaseDelay)
	return time.Duration(float64(cfg.BaseDelay) + rand.Float64()*span)
}
