// Package health provides liveness and readiness checks for the service probes.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Heartbeater is a dependency that can report whether it is reachable.
// Implemented by metadata persisters.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// HeartbeatFunc adapts a function, e.g. a database ping, into a Heartbeater.
type HeartbeatFunc func(ctx context.Context) error

func (f HeartbeatFunc) Heartbeat(ctx context.Context) error { return f(ctx) }

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult contains the result of a health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

type namedCheck struct {
	name string
	dep  Heartbeater
}

// Checker performs health checks on dependencies.
type Checker struct {
	checks   []namedCheck
	timeout  time.Duration
	cacheTTL time.Duration

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedReady  *Response
	shuttingDown bool
}

// NewChecker creates a checker whose readiness depends on the metadata persister.
func NewChecker(meta Heartbeater) *Checker {
	c := &Checker{timeout: 5 * time.Second, cacheTTL: time.Second}
	return c.WithCheck("meta", meta)
}

// WithCheck adds another dependency to readiness. Call before serving.
func (c *Checker) WithCheck(name string, dep Heartbeater) *Checker {
	c.checks = append(c.checks, namedCheck{name: name, dep: dep})
	sort.SliceStable(c.checks, func(i, j int) bool { return c.checks[i].name < c.checks[j].name })
	return c
}

// Liveness reports the process is up. It does not touch dependencies.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness heartbeats every dependency. Results are cached briefly so probes
// do not hammer storage.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}
	if c.cachedReady != nil && time.Since(c.lastCheck) < c.cacheTTL {
		cached := c.cachedReady
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	response := &Response{Status: StatusHealthy, Checks: make(map[string]CheckResult, len(c.checks))}
	for _, nc := range c.checks {
		result := c.check(ctx, nc)
		response.Checks[nc.name] = result
		if result.Status != StatusHealthy {
			response.Status = StatusUnhealthy
		}
	}

	c.mu.Lock()
	c.cachedReady = response
	c.lastCheck = time.Now()
	c.mu.Unlock()

	return response
}

func (c *Checker) check(ctx context.Context, nc namedCheck) CheckResult {
	if nc.dep == nil {
		return CheckResult{Status: StatusUnhealthy, Message: nc.name + " not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := nc.dep.Heartbeat(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown makes readiness fail so load balancers stop routing here.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cachedReady = nil
}
