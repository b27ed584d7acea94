// Package backoff computes the delay between reconnection attempts for the
// realtime channel.
package backoff

import (
	"math"
	"time"
)

// Policy computes reconnection delays. NextDelay is a pure function of the
// attempt number: no jitter, so retry timing is reproducible in tests.
type Policy struct {
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Ceiling for the computed delay
	Factor       float64       // Exponential growth factor
	MaxAttempts  int           // Automatic retries before giving up
}

// Default returns the delays used by the platform clients:
// 1s, 2s, 4s, 8s, 16s, capped at 30s, five attempts.
func Default() Policy {
	return Policy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Factor:       2.0,
		MaxAttempts:  5,
	}
}

// NextDelay returns min(MaxDelay, InitialDelay * Factor^attempt).
// The sequence is non-decreasing in attempt.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// ShouldRetry reports whether another automatic attempt is allowed.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}
