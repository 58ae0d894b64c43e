// Package ratelimit implements the global request gate of the crawler.
// It enforces a minimum spacing between successive request completions so
// that the target site never sees back-to-back traffic, which is the main
// trigger for 429 responses and IP bans.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for gate waits.
var (
	gateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawl_rate_gate_wait_seconds",
		Help:    "Time spent blocked in the rate gate before a request",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	gateWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawl_rate_gate_waits_total",
		Help: "Total number of requests delayed by the rate gate",
	})
)

// Gate enforces a minimum interval between request completions.
//
// The spacing is measured from the completion of the previous request, not
// from its start: a slow request naturally pushes the next one further out.
// Each Gate instance keeps its own completion timestamp; independent gates
// pace independently.
type Gate struct {
	baseInterval time.Duration
	jitter       time.Duration
	logger       zerolog.Logger

	mu   sync.Mutex
	last time.Time
	rand *rand.Rand
}

// NewGate creates a gate with the given base interval and jitter amplitude.
// The effective spacing for each wait is baseInterval plus a uniform random
// duration in [0, jitter). Jitter only ever adds delay.
func NewGate(baseInterval, jitter time.Duration, logger zerolog.Logger) *Gate {
	if baseInterval < 0 {
		baseInterval = 0
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Gate{
		baseInterval: baseInterval,
		jitter:       jitter,
		logger:       logger,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until enough time has passed since the previous completion.
// The first request on a fresh gate passes immediately. Wait returns early
// with the context error if ctx is cancelled during the delay.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if g.last.IsZero() {
		g.mu.Unlock()
		return nil
	}
	interval := g.baseInterval
	if g.jitter > 0 {
		interval += time.Duration(g.rand.Float64() * float64(g.jitter))
	}
	remaining := interval - time.Since(g.last)
	g.mu.Unlock()

	if remaining <= 0 {
		return nil
	}

	gateWaitsTotal.Inc()
	gateWaitSeconds.Observe(remaining.Seconds())
	g.logger.Debug().
		Dur("wait", remaining).
		Msg("Rate gate delaying request")

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed records the completion instant of a request. It must be called
// after every finished HTTP exchange, successful or not, so that the next
// Wait measures its spacing from the most recent completion.
func (g *Gate) Completed() {
	g.mu.Lock()
	g.last = time.Now()
	g.mu.Unlock()
}

// LastCompletion returns the recorded completion instant, or the zero time
// if no request has completed yet.
func (g *Gate) LastCompletion() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
