// Package circuitbreaker tracks consecutive failures per key and blocks a key
// for a cooldown once it fails too often.
//
// States:
//   - Closed: attempts allowed
//   - Open: too many consecutive failures, attempts blocked until the cooldown elapses
//   - HalfOpen: cooldown elapsed, the next attempt decides whether the key closes or reopens
package circuitbreaker

import (
	"sort"
	"sync"
	"time"
)

// State represents the state of a single key.
type State int

const (
	Closed   State = iota // Normal operation
	Open                  // Failing, attempts blocked
	HalfOpen              // Testing if recovered
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds configuration for a breaker set.
type Config struct {
	Threshold int           // consecutive failures before a key opens (default: 5)
	Cooldown  time.Duration // time before an open key is retried (default: 30s)
}

// DefaultConfig returns the defaults applied to zero fields.
func DefaultConfig() Config {
	return Config{
		Threshold: 5,
		Cooldown:  30 * time.Second,
	}
}

type entry struct {
	state       State
	failures    int
	lastFailure time.Time
}

// Set holds one breaker per key. Keys are created on first failure.
type Set[K comparable] struct {
	mu      sync.Mutex
	cfg     Config
	entries map[K]*entry
	now     func() time.Time
}

// New creates a breaker set. Zero or negative config values use defaults.
func New[K comparable](cfg Config) *Set[K] {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Set[K]{cfg: cfg, entries: make(map[K]*entry), now: time.Now}
}

// Allow reports whether key may be attempted. An open key whose cooldown has
// elapsed moves to half-open and is allowed.
func (s *Set[K]) Allow(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.state != Open {
		return true
	}
	if s.now().Sub(e.lastFailure) >= s.cfg.Cooldown {
		e.state = HalfOpen
		return true
	}
	return false
}

// Success closes key and clears its failure count.
func (s *Set[K]) Success(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Failure records a failed attempt and reports whether key is now open.
func (s *Set[K]) Failure(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.failures++
	e.lastFailure = s.now()

	if e.state == HalfOpen || e.failures >= s.cfg.Threshold {
		e.state = Open
	}
	return e.state == Open
}

// State returns the current state of key.
func (s *Set[K]) State(key K) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.state
	}
	return Closed
}

// Failures returns the consecutive failure count of key.
func (s *Set[K]) Failures(key K) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.failures
	}
	return 0
}

// Reset closes every key.
func (s *Set[K]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
}

// Stats holds per-state key counts.
type Stats struct {
	Open     int `json:"open"`
	HalfOpen int `json:"half_open"`
	Failing  int `json:"failing"` // closed keys with at least one failure
}

// Stats counts keys by state.
func (s *Set[K]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	for _, e := range s.entries {
		switch e.state {
		case Open:
			stats.Open++
		case HalfOpen:
			stats.HalfOpen++
		default:
			stats.Failing++
		}
	}
	return stats
}

// Opened returns the open keys ordered by less.
func (s *Set[K]) Opened(less func(a, b K) bool) []K {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []K
	for k, e := range s.entries {
		if e.state == Open {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}
