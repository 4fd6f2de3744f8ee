package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Prometheus metrics for the admission gate.
var (
	gateInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poi_gate_in_flight",
		Help: "Number of POI API requests currently admitted by the gate",
	})

	gateAdmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_gate_admissions_total",
		Help: "Total number of requests admitted by the gate",
	})

	gateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "poi_gate_wait_seconds",
		Help:    "Time spent waiting for admission",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})
)

// Gate is a counting admission gate with optional request pacing.
// At most Limit requests are in flight across all callers.
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	limit   int

	mu        sync.Mutex
	inFlight  int
	peak      int
	admitted  int64
	totalWait time.Duration
}

// NewGate creates a gate admitting up to limit concurrent requests.
// rps > 0 additionally paces request starts to rps per second.
func NewGate(limit int, rps float64) (*Gate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("gate limit must be > 0 (got %d)", limit)
	}
	if rps < 0 {
		return nil, fmt.Errorf("requests per second must be >= 0 (got %v)", rps)
	}

	g := &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
	if rps > UnlimitedRate {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return g, nil
}

// Acquire blocks until a slot is free and the pacing limiter allows a start.
// Waiting honours ctx; on error no slot is held.
func (g *Gate) Acquire(ctx context.Context) error {
	start := time.Now()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire gate: %w", err)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return fmt.Errorf("pace request: %w", err)
		}
	}

	waited := time.Since(start)

	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.admitted++
	g.totalWait += waited
	g.mu.Unlock()

	gateInFlight.Inc()
	gateAdmissionsTotal.Inc()
	gateWaitSeconds.Observe(waited.Seconds())
	return nil
}

// Release frees a slot taken by a successful Acquire.
func (g *Gate) Release() {
	g.mu.Lock()
	if g.inFlight == 0 {
		g.mu.Unlock()
		panic("ratelimit: Release without Acquire")
	}
	g.inFlight--
	g.mu.Unlock()

	gateInFlight.Dec()
	g.sem.Release(1)
}

// Limit returns the configured in-flight limit.
func (g *Gate) Limit() int {
	return g.limit
}

// InFlight returns the number of admitted requests not yet released.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Peak returns the highest in-flight count observed.
func (g *Gate) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// Stats returns a snapshot of the gate.
func (g *Gate) Stats() GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateStats{
		Limit:     g.limit,
		InFlight:  g.inFlight,
		Peak:      g.peak,
		Admitted:  g.admitted,
		TotalWait: g.totalWait,
	}
}
