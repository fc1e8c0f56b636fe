package sched

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff carries retry state explicitly (attempt count, next delay) so the
// dispatch loop can be interrupted or inspected at any attempt boundary.
type backoff struct {
	attempt        int
	initial        time.Duration
	max            time.Duration
	jitterFraction float64
}

func newBackoff(initial, max time.Duration, jitterFraction float64) *backoff {
	return &backoff{initial: initial, max: max, jitterFraction: jitterFraction}
}

// Next returns the delay before the following retry: base × 2^attempt,
// capped, with optional jitter.
func (b *backoff) Next() time.Duration {
	delay := float64(b.initial) * math.Pow(2, float64(b.attempt))
	b.attempt++

	if delay > float64(b.max) {
		delay = float64(b.max)
	}
	if b.jitterFraction > 0 {
		jitterRange := delay * b.jitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
