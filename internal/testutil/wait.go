// Package testutil provides helpers shared by package tests: polling for
// background work and building persisted source assets.
package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

// WaitOptions bounds a poll.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption adjusts WaitOptions.
type WaitOption func(*WaitOptions)

// WithTimeout sets the maximum wait time (default: 5s).
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) { o.Timeout = d }
}

// WithInterval sets the polling interval (default: 10ms).
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) { o.Interval = d }
}

func defaultOptions() WaitOptions {
	return WaitOptions{Timeout: 5 * time.Second, Interval: 10 * time.Millisecond}
}

// WaitFor polls condition until it holds or the timeout passes. The condition is
// checked once more at the deadline.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	deadline := time.NewTimer(o.Timeout)
	defer deadline.Stop()
	tick := time.NewTicker(o.Interval)
	defer tick.Stop()

	for !condition() {
		select {
		case <-deadline.C:
			return condition()
		case <-tick.C:
		}
	}
	return true
}

// MustWaitFor fails the test unless condition holds in time.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// MustWaitForCount fails the test unless counter reaches target in time.
func MustWaitForCount(tb testing.TB, counter *atomic.Int64, target int64, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, func() bool { return counter.Load() >= target }, opts...) {
		tb.Fatalf("timed out at %d of %d", counter.Load(), target)
	}
}
