// Package backoff computes delays that grow with consecutive failures.
package backoff

import (
	"math"
	"time"
)

// Policy doubles the delay for every consecutive failure, between Initial and
// Max. Zero fields use defaults.
type Policy struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

func (p Policy) bounds() (time.Duration, time.Duration) {
	initial, maxDelay := p.Initial, p.Max
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return initial, maxDelay
}

// Delay returns the wait after the given number of consecutive failures.
// Zero failures returns Initial, one failure twice that, and so on up to Max.
func (p Policy) Delay(failures int) time.Duration {
	initial, maxDelay := p.bounds()
	if failures < 1 {
		return initial
	}
	d := float64(initial) * math.Pow(2, float64(failures))
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
