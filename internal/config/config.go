// Package config provides configuration loading from environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// ServiceConfig holds configuration for the assets service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // time for the load balancer to drain (0 to skip)
	RunInterval       time.Duration // scheduled pipeline runs (0 disables the loop)
	RunOnStart        bool
	RetryInitial      time.Duration // first retry delay after an aborted run (0 waits a full interval)
	QuarantineAfter   int           // consecutive failures before an asset is skipped (0 disables)
	QuarantineFor     time.Duration
	WatchSources      bool          // refresh when a source file is rewritten
	WatchDebounce     time.Duration
	LogLevel          slog.Level
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		RunInterval:       GetDurationEnv("RUN_INTERVAL", time.Minute),
		RunOnStart:        GetBoolEnv("RUN_ON_START", true),
		RetryInitial:      GetDurationEnv("RUN_RETRY_INITIAL", 5*time.Second),
		QuarantineAfter:   GetIntEnv("QUARANTINE_AFTER", 5),
		QuarantineFor:     GetDurationEnv("QUARANTINE_FOR", 10*time.Minute),
		WatchSources:      GetBoolEnv("WATCH_SOURCES", false),
		WatchDebounce:     GetDurationEnv("WATCH_DEBOUNCE", 500*time.Millisecond),
		LogLevel:          parseLevel(GetEnv("LOG_LEVEL", "info")),
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
