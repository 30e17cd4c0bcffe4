package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled() {
		t.Error("Default config should pace requests")
	}
	// 50 requests per minute is the published ceiling.
	if cfg.RequestsPerSecond*60 > 50 {
		t.Errorf("RequestsPerSecond = %v exceeds 50 req/min", cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		t.Errorf("Burst = %d, want >= 1", cfg.Burst)
	}
}

func TestDisabled(t *testing.T) {
	if Disabled().Enabled() {
		t.Error("Disabled config should not be enabled")
	}
}

func TestRetryAfter(t *testing.T) {
	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)

	tests := []struct {
		name    string
		header  string
		wantOK  bool
		wantMin time.Duration
		wantMax time.Duration
	}{
		{name: "absent", header: "", wantOK: false},
		{name: "seconds", header: "30", wantOK: true, wantMin: 30 * time.Second, wantMax: 30 * time.Second},
		{name: "zero seconds", header: "0", wantOK: true},
		{name: "negative seconds", header: "-5", wantOK: false},
		{name: "http date", header: future, wantOK: true, wantMin: 80 * time.Second, wantMax: 91 * time.Second},
		{name: "http date in the past", header: past, wantOK: true},
		{name: "garbage", header: "soon", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}

			got, ok := RetryAfter(h)
			if ok != tt.wantOK {
				t.Fatalf("RetryAfter ok = %v, want %v", ok, tt.wantOK)
			}
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("RetryAfter = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}
