package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_rate_limit_waits_total",
		Help: "Total number of requests delayed by the local rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ctgov_rate_limit_wait_seconds",
		Help:    "Time spent waiting on the local rate limiter",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

// Limiter gates outgoing requests with a token bucket.
// A nil *Limiter or one built from a disabled Config never blocks.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter for the given configuration.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	if !cfg.Enabled() {
		return &Limiter{logger: logger}
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:  logger,
	}
}

// Wait blocks until the next request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}

	reservation := l.limiter.Reserve()
	if !reservation.OK() {
		return fmt.Errorf("rate limiter cannot grant request (burst %d)", l.limiter.Burst())
	}

	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}

	rateLimitWaitsTotal.Inc()
	rateLimitWaitSeconds.Observe(delay.Seconds())
	l.logger.Debug().Dur("delay", delay).Msg("Pacing request")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		reservation.Cancel()
		return fmt.Errorf("wait for rate limiter: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
