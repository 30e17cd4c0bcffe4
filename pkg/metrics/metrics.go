// Package metrics provides the Prometheus registry shared by the extractor
// packages and pushes run metrics to a Pushgateway.
// Metrics are defined in their respective packages (client, ratelimit, store,
// pipeline) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry is the default Prometheus registry used by the extractor.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source of the metrics pushed at the end of a run.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "ctgov_extract"

// Push sends every gathered metric to the Pushgateway at url, replacing the
// metrics previously pushed under the same job and instance grouping.
func Push(ctx context.Context, url, job, instance string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		job = DefaultJob
	}

	pusher := push.New(url, job).Gatherer(Gatherer)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ctgov_requests_total{status} (Counter): Requests by HTTP status (or "network_error")
//   - ctgov_request_duration_seconds (Histogram): Request duration
//   - ctgov_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - ctgov_retries_total{error_class} (Counter): Retry attempts by error class
//   - ctgov_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pacing Metrics (pkg/ratelimit):
//   - ctgov_rate_limit_waits_total (Counter): Requests delayed by the local limiter
//   - ctgov_rate_limit_wait_seconds (Histogram): Time spent waiting on the limiter
//
// Storage Metrics (pkg/store):
//   - ctgov_files_written_total (Counter): Parquet page files written
//   - ctgov_rows_written_total (Counter): Rows written across page files
//   - ctgov_persist_duration_seconds (Histogram): Time to write one page file
//
// Ledger Metrics (pkg/ledger):
//   - ctgov_ledger_writes_total{result} (Counter): Ledger writes by result (ok, error)
//
// Pipeline Metrics (pkg/pipeline):
//   - ctgov_pages_persisted_total (Counter): Pages persisted
//   - ctgov_runs_truncated_total (Counter): Runs that ended before the expected page count
//   - ctgov_expected_records (Gauge): x-total-count reported by the API for the last run
//
// Example Prometheus Queries:
//
//   # Rows extracted by the last push
//   ctgov_rows_written_total
//
//   # Runs that ended early
//   increase(ctgov_runs_truncated_total[1d]) > 0
