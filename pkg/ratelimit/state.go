// Package ratelimit paces requests to the studies API and interprets the
// server's rate limit signals.
//
// ClinicalTrials.gov publishes a soft limit of roughly 50 requests per minute
// per client and answers 429 Too Many Requests when it is exceeded.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config holds the pacing configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate. Zero or negative
	// disables pacing entirely.
	RequestsPerSecond float64

	// Burst is the number of requests allowed back to back (minimum 1).
	Burst int
}

// DefaultConfig returns a configuration that stays below the published
// ClinicalTrials.gov limit.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 0.8,
		Burst:             1,
	}
}

// Disabled returns a configuration that never delays a request.
func Disabled() Config {
	return Config{}
}

// Enabled reports whether the configuration paces requests.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// RetryAfter extracts the server requested delay from a Retry-After header.
// Both the delta-seconds and the HTTP-date forms are accepted. The second
// return value is false when the header is absent or unparseable.
func RetryAfter(headers http.Header) (time.Duration, bool) {
	value := strings.TrimSpace(headers.Get("Retry-After"))
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	return delay, true
}
