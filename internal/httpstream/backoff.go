// Package httpstream contains the connection-side helpers of the MJPEG
// reader: reconnect backoff, error classification, throttled logging, source
// address binding and the idle-read watchdog.
package httpstream

import (
	"context"
	"time"
)

// ReconnectConfig contains configuration for exponential backoff reconnection
type ReconnectConfig struct {
	MaxRetries    int           // Maximum consecutive failed attempts, 0 = unlimited (default: 0)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
	Multiplier    float64       // Growth factor per failure (default: 2.0)
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    0,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
		Multiplier:    2.0,
	}
}

// Delay calculates the backoff delay before retry n (1-based).
//
// Formula: delay = retryDelay * multiplier^(n-1)
// Cap: min(delay, maxRetryDelay)
//
// Example with default config (retryDelay=1s, multiplier=2, maxRetryDelay=30s):
//   - Retry 1: 1s
//   - Retry 2: 2s
//   - Retry 3: 4s
//   - Retry 5: 16s
//   - Retry 6+: 30s (capped)
func Delay(n int, cfg ReconnectConfig) time.Duration {
	if n < 1 {
		n = 1
	}

	delay := float64(cfg.RetryDelay)
	limit := float64(cfg.MaxRetryDelay)
	for i := 1; i < n; i++ {
		delay *= cfg.Multiplier
		if delay >= limit {
			return cfg.MaxRetryDelay
		}
	}

	if delay > limit {
		return cfg.MaxRetryDelay
	}
	return time.Duration(delay)
}

// Backoff is the reconnect state owned by the stream loop.
//
// It is mutated only at two points: Reset after a 200 response and Next after
// a failed attempt. Not safe for concurrent use.
type Backoff struct {
	cfg      ReconnectConfig
	failures int // consecutive failures since the last Reset
}

// NewBackoff creates a backoff starting at cfg.RetryDelay.
func NewBackoff(cfg ReconnectConfig) *Backoff {
	return &Backoff{cfg: cfg}
}

// Next records a failure and returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.failures++
	return Delay(b.failures, b.cfg)
}

// Reset returns the delay to its initial value.
func (b *Backoff) Reset() {
	b.failures = 0
}

// Current returns the delay the next failure would produce.
func (b *Backoff) Current() time.Duration {
	return Delay(b.failures+1, b.cfg)
}

// Failures returns the number of consecutive failures since the last Reset.
func (b *Backoff) Failures() int {
	return b.failures
}

// Exhausted reports whether MaxRetries consecutive failures have happened.
func (b *Backoff) Exhausted() bool {
	return b.cfg.MaxRetries > 0 && b.failures >= b.cfg.MaxRetries
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
