package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestPush_RequiresURL(t *testing.T) {
	if err := Push(context.Background(), "", "job", ""); err == nil {
		t.Error("Expected error for empty pushgateway url")
	}
}

func TestPush(t *testing.T) {
	var (
		mu     sync.Mutex
		path   string
		method string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, method, body = r.URL.Path, r.Method, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_test_pushed_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	original := Gatherer
	Gatherer = reg
	defer func() { Gatherer = original }()

	if err := Push(context.Background(), server.URL, "", "host-1"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if method != http.MethodPut {
		t.Errorf("Method = %s, want PUT", method)
	}
	if !strings.Contains(path, "/job/"+DefaultJob) {
		t.Errorf("Path = %q, want job %q", path, DefaultJob)
	}
	if !strings.Contains(path, "/instance/host-1") {
		t.Errorf("Path = %q, want instance grouping", path)
	}
	if !strings.Contains(body, "ctgov_test_pushed_total") {
		t.Error("Expected pushed body to contain the test counter")
	}
}

func TestPush_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	original := Gatherer
	Gatherer = prometheus.NewRegistry()
	defer func() { Gatherer = original }()

	if err := Push(context.Background(), server.URL, "job", ""); err == nil {
		t.Error("Expected error when pushgateway rejects the push")
	}
}
