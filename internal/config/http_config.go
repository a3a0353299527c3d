package config

import (
	"strconv"
	"time"
)

type HTTPConfig interface {
	GetRequestTimeout() time.Duration
	GetMaxRetries() int
	GetRetryBaseDelay() time.Duration
	GetRetryMaxDelay() time.Duration
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

func (HTTP) GetRequestTimeout() time.Duration {
	return envDuration("CARTOMAP_REQUEST_TIMEOUT", 30*time.Second)
}

// GetMaxRetries returns the number of additional attempts allowed for a
// request that fails with a transient status, not counting the first try.
func (HTTP) GetMaxRetries() int {
	if v, err := strconv.Atoi(GetEnv("CARTOMAP_MAX_RETRIES", "")); err == nil && v >= 0 {
		return v
	}
	return 3
}

func (HTTP) GetRetryBaseDelay() time.Duration {
	return envDuration("CARTOMAP_RETRY_BASE_DELAY", 500*time.Millisecond)
}

func (HTTP) GetRetryMaxDelay() time.Duration {
	return envDuration("CARTOMAP_RETRY_MAX_DELAY", 5*time.Second)
}

func envDuration(envVar string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(GetEnv(envVar, "")); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
