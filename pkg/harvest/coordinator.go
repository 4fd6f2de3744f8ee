// Package harvest drives the page-by-page harvest of a single query.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onemotre/MapPOI/pkg/client"
	"github.com/onemotre/MapPOI/pkg/pagination"
	"github.com/onemotre/MapPOI/pkg/poi"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_pages_total",
		Help: "Total number of pages parsed",
	})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_records_total",
		Help: "Total number of POI records harvested",
	})

	parseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_parse_failures_total",
		Help: "Total number of malformed POI items skipped",
	})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "poi_query_duration_seconds",
		Help:    "Time to harvest one query",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Fetcher retrieves one page under a query's retry budget.
type Fetcher interface {
	Fetch(ctx context.Context, req client.PageRequest, budget *client.RetryBudget) client.Outcome
}

// Options configures a Coordinator.
type Options struct {
	// MaxPages is the page ceiling per query (<= 0 selects the default).
	MaxPages int

	// PageSize is sent with every request (<= 0 lets the fetcher decide).
	PageSize int

	// RetryBudget is the transport retry allowance per query.
	RetryBudget int

	Logger zerolog.Logger
}

// Coordinator harvests queries one page at a time. It is safe for
// concurrent use; each Run owns its own cursor and budget.
type Coordinator struct {
	fetcher Fetcher
	parser  *poi.Parser
	opts    Options
	logger  zerolog.Logger
}

// NewCoordinator creates a coordinator. A nil parser selects poi.NewParser().
func NewCoordinator(fetcher Fetcher, parser *poi.Parser, opts Options) *Coordinator {
	if fetcher == nil {
		panic("harvest: nil fetcher")
	}
	if parser == nil {
		parser = poi.NewParser()
	}
	if opts.RetryBudget < 0 {
		opts.RetryBudget = 0
	}
	return &Coordinator{
		fetcher: fetcher,
		parser:  parser,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "coordinator").Logger(),
	}
}

// Run harvests q until its cursor is terminal and returns exactly one Result.
//
// Pages are requested in increasing order. A successful page is parsed and
// the cursor advanced by the page's reported count; a transport or domain
// failure aborts the query and keeps the records collected so far.
// Cancelling ctx aborts between pages with reason cancelled.
func (c *Coordinator) Run(ctx context.Context, q query.Query) Result {
	start := time.Now()
	logger := c.logger.With().Str("region", q.Region).Str("category", q.Category).Logger()

	cursor := pagination.NewCursor(c.opts.MaxPages)
	budget := client.NewRetryBudget(c.opts.RetryBudget)
	res := Result{Query: q}
	running := 0

	for {
		if err := ctx.Err(); err != nil {
			cursor.Abort(pagination.AbortCancelled)
			res.Err = fmt.Errorf("%w: %v", client.ErrCancelled, err)
			break
		}

		page, ok := cursor.Next()
		if !ok {
			break
		}

		out := c.fetcher.Fetch(ctx, client.PageRequest{Query: q, Page: page, PageSize: c.opts.PageSize}, budget)
		res.Congestion += out.Congestion

		switch out.Kind {
		case client.OutcomeSuccess:
			if out.Cached {
				res.CachedPages++
			}
			records, next, failures := c.parser.Parse(out.Page, running)
			running = next
			res.Pages++
			res.Records = append(res.Records, records...)
			res.ParseFailures += len(failures)

			pagesTotal.Inc()
			recordsTotal.Add(float64(len(records)))
			parseFailuresTotal.Add(float64(len(failures)))
			for _, f := range failures {
				logger.Warn().
					Int("page", page).
					Int("position", f.Position).
					Str("name", f.Name).
					Str("field", f.Field).
					Err(f.Err).
					Msg("Skipping malformed POI")
			}

			cursor.Advance(out.Page.ReportedCount())

		case client.OutcomeDomainFailure:
			cursor.Abort(pagination.AbortDomain)
			res.Err = out.Err
			logger.Error().
				Err(out.Err).
				Int("page", page).
				Str("infocode", infoCode(out)).
				Msg("API rejected request, aborting query")

		default:
			res.Err = out.Err
			if out.Cancelled() {
				cursor.Abort(pagination.AbortCancelled)
				logger.Warn().Int("page", page).Msg("Run cancelled, aborting query")
				break
			}
			cursor.Abort(pagination.AbortTransport)
			logger.Error().
				Err(out.Err).
				Int("page", page).
				Int("attempt", out.Attempts).
				Str("error_class", string(out.Class())).
				Msg("Transport failure, aborting query")
		}
	}

	res.TransportRetries = budget.Used()
	res.Reason = cursor.Reason()
	if cursor.State() == pagination.StateAborted {
		res.State = StateAborted
	}

	elapsed := time.Since(start)
	queryDuration.Observe(elapsed.Seconds())
	logger.Info().
		Str("state", res.State.String()).
		Str("reason", string(res.Reason)).
		Int("records", len(res.Records)).
		Int("pages", res.Pages).
		Int("retries", res.TransportRetries).
		Int("congestion", res.Congestion).
		Dur("duration", elapsed).
		Msg("Query finished")

	return res
}

func infoCode(out client.Outcome) string {
	var apiErr *client.APIError
	if errors.As(out.Err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
