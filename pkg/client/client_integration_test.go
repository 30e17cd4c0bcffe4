//go:build integration

package client

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/ratelimit"
)

// These tests talk to the live ClinicalTrials.gov API.

func newLiveClient(t *testing.T) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.UserAgent = "ctgov-extractor-integration/0.1.0"
	cfg.Timeout = 60 * time.Second
	cfg.MaxRetries = 2
	cfg.RateLimit = ratelimit.DefaultConfig()

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestIntegration_FirstPage(t *testing.T) {
	c := newLiveClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	resp, err := c.Fetch(ctx, NewQuery(5))
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d", resp.StatusCode)
	}

	total, err := resp.TotalCount()
	if err != nil {
		t.Fatalf("TotalCount() failed: %v", err)
	}
	if total < 5 {
		t.Errorf("TotalCount() = %d, expected a populated registry", total)
	}

	if _, ok := resp.NextPageToken(); !ok {
		t.Error("Expected a next page token on the first page")
	}
	if !strings.Contains(string(resp.Body), "NCT Number") {
		t.Error("Expected CSV header with NCT Number column")
	}
}

func TestIntegration_TokenChain(t *testing.T) {
	c := newLiveClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	since := time.Now().AddDate(0, 0, -7)
	q := NewQuery(3).WithSince(since)

	first, err := c.Fetch(ctx, q)
	if err != nil {
		t.Fatalf("Fetch() first page failed: %v", err)
	}
	token, ok := first.NextPageToken()
	if !ok {
		t.Skip("Fewer than one page of recent updates; nothing to chain")
	}

	second, err := c.Fetch(ctx, q.WithPageToken(token))
	if err != nil {
		t.Fatalf("Fetch() second page failed: %v", err)
	}
	if string(second.Body) == string(first.Body) {
		t.Error("Second page should differ from the first")
	}
}
