package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onemotre/MapPOI/pkg/harvest"
	"github.com/onemotre/MapPOI/pkg/pagination"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/onemotre/MapPOI/pkg/ratelimit"
	"github.com/onemotre/MapPOI/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_queries_total",
		Help: "Total number of finished queries by terminal state and reason",
	}, []string{"state", "reason"})

	storageFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_storage_failures_total",
		Help: "Total number of results the sink failed to persist",
	})

	workerPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_worker_panics_total",
		Help: "Total number of recovered worker panics",
	})

	abandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_queries_abandoned_total",
		Help: "Total number of queries abandoned after a worker panic",
	})

	activeQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poi_active_queries",
		Help: "Number of queries currently being harvested",
	})
)

// Runner harvests one query.
type Runner interface {
	Run(ctx context.Context, q query.Query) harvest.Result
}

// Options configures a Scheduler.
type Options struct {
	// Workers is the number of query groups (<= 0 selects 1).
	Workers int

	// MaxActive bounds concurrently harvested queries per worker (<= 0 selects 1).
	MaxActive int

	// Gate, when set, is reported in the summary.
	Gate *ratelimit.Gate

	Logger zerolog.Logger
}

// Scheduler runs the query space across workers and hands every result to
// a sink as soon as it is ready.
type Scheduler struct {
	runner Runner
	sink   storage.Sink
	opts   Options
	logger zerolog.Logger
}

// New creates a scheduler. A nil sink discards results.
func New(runner Runner, sink storage.Sink, opts Options) *Scheduler {
	if runner == nil {
		panic("scheduler: nil runner")
	}
	if sink == nil {
		sink = storage.Discard
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = 1
	}
	return &Scheduler{
		runner: runner,
		sink:   sink,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// run collects the reports of all workers.
type run struct {
	mu       sync.Mutex
	queries  []QueryReport
	failures []StorageFailure
}

func (r *run) report(rep QueryReport) {
	r.mu.Lock()
	r.queries = append(r.queries, rep)
	r.mu.Unlock()
}

func (r *run) storageFailure(f StorageFailure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

// Run harvests queries and blocks until every worker has finished.
//
// Cancelling ctx stops new queries from starting; queries in progress end
// as aborted (cancelled) and their partial results are still stored.
func (s *Scheduler) Run(ctx context.Context, queries []query.Query) Summary {
	start := time.Now()
	groups := Partition(queries, s.opts.Workers)

	s.logger.Info().
		Int("queries", len(queries)).
		Int("workers", len(groups)).
		Int("max_active", s.opts.MaxActive).
		Msg("Starting harvest")

	r := &run{}
	workers := make([]WorkerReport, len(groups))

	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		go func(id int, group []query.Query) {
			defer wg.Done()
			workers[id] = s.work(ctx, id, group, r)
		}(i, group)
	}
	wg.Wait()

	sum := Summary{
		Queries:         r.queries,
		Workers:         workers,
		StorageFailures: r.failures,
		Duration:        time.Since(start),
	}
	if s.opts.Gate != nil {
		sum.Gate = s.opts.Gate.Stats()
		sum.GatePeak = sum.Gate.Peak
	}

	exhausted, aborted := sum.Counts()
	s.logger.Info().
		Int("exhausted", exhausted).
		Int("aborted", aborted).
		Int("abandoned", len(sum.Abandoned())).
		Int("records", sum.Records()).
		Int("storage_failures", len(sum.StorageFailures)).
		Int("gate_peak", sum.GatePeak).
		Int64("requests", sum.Gate.Admitted).
		Dur("gate_wait", sum.Gate.TotalWait).
		Dur("duration", sum.Duration).
		Msg("Harvest finished")
	return sum
}

type abandonment struct {
	pos int
	q   query.Query
}

// work runs one group with at most MaxActive queries in progress.
func (s *Scheduler) work(ctx context.Context, id int, group []query.Query, r *run) WorkerReport {
	logger := s.logger.With().Int("worker", id).Logger()
	logger.Debug().Int("queries", len(group)).Msg("Worker started")

	var (
		g         errgroup.Group
		panicked  atomic.Bool
		mu        sync.Mutex
		abandoned []abandonment
	)
	g.SetLimit(s.opts.MaxActive)

	for pos, q := range group {
		g.Go(func() (err error) {
			if panicked.Load() {
				mu.Lock()
				abandoned = append(abandoned, abandonment{pos, q})
				mu.Unlock()
				return nil
			}

			defer func() {
				if rec := recover(); rec != nil {
					panicked.Store(true)
					workerPanicsTotal.Inc()
					mu.Lock()
					abandoned = append(abandoned, abandonment{pos, q})
					mu.Unlock()
					err = fmt.Errorf("query %s panicked: %v", q, rec)
					logger.Error().
						Str("region", q.Region).
						Str("category", q.Category).
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Msg("Recovered panic, abandoning the rest of the group")
				}
			}()

			s.harvest(ctx, id, q, r, logger)
			return nil
		})
	}
	err := g.Wait()

	sort.Slice(abandoned, func(i, j int) bool { return abandoned[i].pos < abandoned[j].pos })
	rep := WorkerReport{Worker: id, Queries: len(group), Err: err}
	for _, a := range abandoned {
		rep.Abandoned = append(rep.Abandoned, a.q)
	}
	abandonedTotal.Add(float64(len(rep.Abandoned)))

	logger.Debug().
		Int("abandoned", len(rep.Abandoned)).
		Err(err).
		Msg("Worker finished")
	return rep
}

// harvest runs one query and stores its result.
func (s *Scheduler) harvest(ctx context.Context, worker int, q query.Query, r *run, logger zerolog.Logger) {
	if err := ctx.Err(); err != nil {
		r.report(QueryReport{
			Query:  q,
			Worker: worker,
			State:  harvest.StateAborted,
			Reason: pagination.AbortCancelled,
			Err:    err,
		})
		queriesTotal.WithLabelValues(harvest.StateAborted.String(), string(pagination.AbortCancelled)).Inc()
		return
	}

	res := s.runQuery(ctx, q)
	queriesTotal.WithLabelValues(res.State.String(), string(res.Reason)).Inc()

	rep := QueryReport{
		Query:   q,
		Worker:  worker,
		State:   res.State,
		Reason:  res.Reason,
		Records: res.Len(),
		Pages:   res.Pages,
		Retries: res.TransportRetries,
		Err:     res.Err,
		Stored:  true,
	}
	if err := s.sink.Store(ctx, res); err != nil {
		rep.Stored = false
		storageFailuresTotal.Inc()
		r.storageFailure(StorageFailure{Query: q, Err: err})
		logger.Error().
			Err(err).
			Str("region", q.Region).
			Str("category", q.Category).
			Int("records", res.Len()).
			Msg("Failed to store result")
	}
	r.report(rep)
}

func (s *Scheduler) runQuery(ctx context.Context, q query.Query) harvest.Result {
	activeQueries.Inc()
	defer activeQueries.Dec()
	return s.runner.Run(ctx, q)
}
