package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the trimmed value of key, or "" if unset.
func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnv returns the environment variable value or a default.
func GetEnv(key, defaultValue string) string {
	if value := lookup(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv returns an integer environment variable or a default.
func GetIntEnv(key string, defaultValue int) int {
	if n, err := strconv.Atoi(lookup(key)); err == nil {
		return n
	}
	return defaultValue
}

// GetBoolEnv accepts the strconv.ParseBool spellings; anything else yields the default.
func GetBoolEnv(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(lookup(key)); err == nil {
		return b
	}
	return defaultValue
}

// GetDurationEnv returns a duration environment variable or a default.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(lookup(key)); err == nil {
		return d
	}
	return defaultValue
}

// GetListEnv splits a comma separated variable, dropping empty items.
func GetListEnv(key string) []string {
	var items []string
	for _, item := range strings.Split(lookup(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetSecretFile reads a secret from a mounted file. Missing files yield "".
func GetSecretFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
