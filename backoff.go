package libcable

import (
	"math"
	"time"
)

// BackoffCalculator returns how long to wait before the given reconnection attempt (0 based).
type BackoffCalculator func(attempts int) time.Duration

// ExponentialBackoff returns the growth factor for attempts: 1, 2, 4, 8...
func ExponentialBackoff(attempts int) float64 {
	if attempts < 0 {
		attempts = 0
	}
	return math.Pow(2.0, float64(attempts))
}

// NewExponentialBackoff returns a calculator doubling initial on every attempt, capped at max.
func NewExponentialBackoff(initial, max time.Duration) BackoffCalculator {
	return func(attempts int) time.Duration {
		d := float64(initial) * ExponentialBackoff(attempts)
		if d >= float64(max) || math.IsInf(d, 0) {
			return max
		}
		return time.Duration(d)
	}
}
