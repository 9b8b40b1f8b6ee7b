package worker

import (
	"math"
	"time"
)

// RetryPolicy controls how long a failed sync task waits before the queue
// picks it up again. Delays grow geometrically per attempt and are capped
// at MaxDelay.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay computes the wait before the given attempt. Attempts are
// 1-based; out-of-range inputs and unset policy fields fall back to a
// one-second base with factor 2.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	wait := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if p.MaxDelay > 0 && wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	if wait <= 0 {
		wait = time.Second
	}
	return wait
}
