package backoff

import (
	"math"
	"math/rand"
	"time"
)

// RetryDelay returns the wait before the given attempt using exponential
// backoff with +/-50% jitter. Attempts <= 1 never wait.
func RetryDelay(attempt int, base time.Duration) time.Duration {
	if attempt <= 1 || base <= 0 {
		return 0
	}

	// 2^(attempt-1) * base
	d := time.Duration(math.Pow(2, float64(attempt-1))) * base

	jitterRange := float64(d) * 0.5
	jitter := time.Duration(rand.Float64()*2*jitterRange - jitterRange)

	if d += jitter; d < 0 {
		d = 0
	}
	return d
}
