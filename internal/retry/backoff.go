package retry

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff grows the delay by multiplier per attempt, capped at
// maxDelay, with symmetric jitter.
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64

	// maxAttempts counts retries after the first attempt. Negative means unlimited.
	maxAttempts int

	// jitter of 0.1 spreads each delay by +/- 10%.
	jitter     float64
	jitterFunc func() float64 // returns [0, 1); rand.Float64 when nil
}

// BackoffOption is a functional option for configuring ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) { b.initialDelay = d }
}

func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) { b.maxDelay = d }
}

func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) { b.multiplier = m }
}

func WithJitter(j float64) BackoffOption {
	return func(b *ExponentialBackoff) { b.jitter = j }
}

// WithJitterFunc makes delays deterministic in tests.
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *ExponentialBackoff) { b.jitterFunc = f }
}

// NewExponentialBackoff returns a backoff starting at 100ms, doubling up to 30s,
// with 10% jitter, unless overridden by opts.
func NewExponentialBackoff(maxAttempts int, opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		maxAttempts:  maxAttempts,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDelay returns the wait before retry number attempt (0-based).
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt))
	if max := float64(b.maxDelay); delay > max {
		delay = max
	}

	if b.jitter > 0 {
		random := b.jitterFunc
		if random == nil {
			random = rand.Float64
		}
		delay *= 1.0 + b.jitter*(random()-0.5)*2.0
	}

	return time.Duration(delay)
}

func (b *ExponentialBackoff) MaxAttempts() int {
	return b.maxAttempts
}
