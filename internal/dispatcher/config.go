package dispatcher

import (
	"time"

	"assetgraph/internal/config"
	"assetgraph/pkg/backoff"
	"assetgraph/pkg/circuitbreaker"
)

// MemoryConfig holds configuration for the in-memory dispatcher.
type MemoryConfig struct {
	BufferSize  int           // pending events buffer (default: 1000)
	Workers     int           // concurrent delivery goroutines (default: 4)
	HTTPTimeout time.Duration // per-request timeout (default: 10s)
	MaxRetries  int           // retries after the first attempt (default: 3)
	MaxRequeues int           // requeues while a destination is blocked (default: 10)
	SigningKey  string        // HMAC key, empty disables signing
	Retry       backoff.Policy
	Breaker     circuitbreaker.Config
}

// NotifyConfig selects where run notifications go.
type NotifyConfig struct {
	URLs   []string // webhook destinations, empty disables notifications
	Source string   // CloudEvents source attribute
	Memory MemoryConfig
}

// Enabled reports whether any destination is configured.
func (c NotifyConfig) Enabled() bool { return len(c.URLs) > 0 }

// LoadConfigFromEnv loads notification configuration from environment variables.
func LoadConfigFromEnv() NotifyConfig {
	return NotifyConfig{
		URLs:   config.GetListEnv("NOTIFY_URLS"),
		Source: config.GetEnv("NOTIFY_SOURCE", "/assetgraph"),
		Memory: MemoryConfig{
			BufferSize:  config.GetIntEnv("NOTIFY_BUFFER_SIZE", 1000),
			Workers:     config.GetIntEnv("NOTIFY_WORKERS", 4),
			HTTPTimeout: config.GetDurationEnv("NOTIFY_HTTP_TIMEOUT", 10*time.Second),
			SigningKey:  config.GetSecretFile(config.GetEnv("NOTIFY_SIGNING_KEY_FILE", "")),
		}.withDefaults(),
	}
}

// withDefaults fills in zero values with defaults.
func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxRequeues <= 0 {
		c.MaxRequeues = 10
	}
	if c.Breaker == (circuitbreaker.Config{}) {
		c.Breaker = circuitbreaker.DefaultConfig()
	}
	return c
}
