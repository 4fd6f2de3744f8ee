// Package client provides the rate-limited POI API fetcher: one page request
// in, one classified outcome out, with the transport retry policy applied.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onemotre/MapPOI/pkg/cache"
	"github.com/onemotre/MapPOI/pkg/poi"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/onemotre/MapPOI/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for POI API requests.
var (
	poiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_requests_total",
		Help: "Total POI API requests by outcome",
	}, []string{"outcome"})

	poiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "poi_request_duration_seconds",
		Help:    "POI API request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	poiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_errors_total",
		Help: "Total failed POI API requests by error class",
	}, []string{"class"})

	poiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_retries_total",
		Help: "Total number of transport retries by error class",
	}, []string{"error_class"})

	poiRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_retry_exhausted_total",
		Help: "Total number of pages whose query ran out of transport retries",
	})

	poiCongestionWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_congestion_waits_total",
		Help: "Total number of rate-limit congestion responses waited out",
	})
)

// Defaults for the AMap v5 text search endpoint.
const (
	DefaultBaseURL         = "https://restapi.amap.com/v5/place/text"
	MaxPageSize            = 25
	DefaultTimeout         = 10 * time.Second
	DefaultRetryBudget     = 3
	DefaultRetryDelay      = 3 * time.Second
	DefaultCongestionDelay = 2 * time.Second

	maxBodyBytes = 4 << 20
)

// DefaultCongestionCodes are the infocodes treated as rate-limit congestion.
// 10021 is CUQPS_HAS_EXCEEDED_THE_LIMIT.
var DefaultCongestionCodes = []string{"10021"}

// PageRequest asks for one page of one query.
type PageRequest struct {
	Query    query.Query
	Page     int
	PageSize int
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the text search endpoint.
	BaseURL string

	// APIKey is the web service key (REQUIRED).
	APIKey string

	// Keywords is sent with every query; empty omits the parameter.
	Keywords string

	// PageSize is clamped to [1, MaxPageSize].
	PageSize int

	// Timeout is the deadline of a single attempt.
	Timeout time.Duration

	// RetryDelay is the fixed wait after a transport failure.
	RetryDelay time.Duration

	// CongestionDelay is the fixed wait after a congestion response.
	CongestionDelay time.Duration

	// CongestionCodes are infocodes retried without consuming the budget.
	CongestionCodes []string

	// Gate is the run-wide admission gate (REQUIRED).
	Gate *ratelimit.Gate

	// Cache is an optional page cache.
	Cache *cache.Manager

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// Logger receives retry diagnostics. The zero value discards them.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string, gate *ratelimit.Gate) Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		APIKey:          apiKey,
		PageSize:        MaxPageSize,
		Timeout:         DefaultTimeout,
		RetryDelay:      DefaultRetryDelay,
		CongestionDelay: DefaultCongestionDelay,
		CongestionCodes: append([]string(nil), DefaultCongestionCodes...),
		Gate:            gate,
	}
}

// Client fetches pages from the POI API.
type Client struct {
	httpClient      *http.Client
	endpoint        *url.URL
	gate            *ratelimit.Gate
	cache           *cache.Manager
	congestionCodes map[string]struct{}
	config          Config
	logger          zerolog.Logger
}

// New creates a new POI API client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("admission gate is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	endpoint, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.CongestionDelay < 0 {
		cfg.CongestionDelay = 0
	}
	if cfg.CongestionCodes == nil {
		cfg.CongestionCodes = append([]string(nil), DefaultCongestionCodes...)
	}

	codes := make(map[string]struct{}, len(cfg.CongestionCodes))
	for _, code := range cfg.CongestionCodes {
		codes[strings.TrimSpace(code)] = struct{}{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient:      httpClient,
		endpoint:        endpoint,
		gate:            cfg.Gate,
		cache:           cfg.Cache,
		congestionCodes: codes,
		config:          cfg,
		logger:          cfg.Logger.With().Str("component", "poi-client").Logger(),
	}, nil
}

// PageSize returns the effective page size.
func (c *Client) PageSize() int {
	return c.config.PageSize
}

// Fetch retrieves one page, applying the retry policy:
//   - transport failures consume budget and are retried after RetryDelay
//     until the budget is exhausted
//   - congestion responses are retried after CongestionDelay without
//     consuming budget, indefinitely
//   - domain failures are returned immediately
//
// Cancelling ctx stops waiting for admission or between attempts. An
// attempt already in flight is never cancelled; it completes or hits its
// own deadline.
func (c *Client) Fetch(ctx context.Context, req PageRequest, budget *RetryBudget) Outcome {
	params := c.params(req)
	key := cache.CacheKey{Endpoint: c.endpoint.Path, QueryParams: params}

	if out, ok := c.fromCache(ctx, key); ok {
		return out
	}

	var attempts, congestion int
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err, attempts, congestion)
		}

		if c.gate.Stats().Saturated() {
			c.logger.Debug().
				Str("query", req.Query.String()).
				Int("page", req.Page).
				Msg("Admission gate saturated, waiting")
		}
		if err := c.gate.Acquire(ctx); err != nil {
			return cancelled(err, attempts, congestion)
		}
		attempts++
		statusCode, body, reqErr := c.do(ctx, params)
		c.gate.Release()

		out := classify(statusCode, body, reqErr, c.congestionCodes)
		out.Attempts = attempts
		out.Congestion = congestion
		poiRequestsTotal.WithLabelValues(out.Kind.String()).Inc()

		switch out.Kind {
		case OutcomeSuccess:
			c.store(ctx, key, body)
			return out

		case OutcomeDomainFailure:
			poiErrorsTotal.WithLabelValues(string(out.Class())).Inc()
			return out

		case OutcomeCongestion:
			congestion++
			poiCongestionWaitsTotal.Inc()
			c.logger.Debug().
				Str("query", req.Query.String()).
				Int("page", req.Page).
				Int("congestion", congestion).
				Dur("delay", c.config.CongestionDelay).
				Msg("Congestion response, waiting before re-issuing")
			if err := sleep(ctx, c.config.CongestionDelay); err != nil {
				return cancelled(err, attempts, congestion)
			}

		case OutcomeTransportFailure:
			class := out.Class()
			poiErrorsTotal.WithLabelValues(string(class)).Inc()
			if !budget.Consume() {
				poiRetryExhaustedTotal.Inc()
				out.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, out.Err)
				return out
			}
			poiRetriesTotal.WithLabelValues(string(class)).Inc()
			c.logger.Debug().
				Str("query", req.Query.String()).
				Int("page", req.Page).
				Int("attempt", attempts).
				Int("retries_left", budget.Remaining()).
				Str("error_class", string(class)).
				Dur("delay", c.config.RetryDelay).
				Msg("Retrying request after transport failure")
			if err := sleep(ctx, c.config.RetryDelay); err != nil {
				return cancelled(err, attempts, congestion)
			}
		}
	}
}

// params builds the query string of a page request.
func (c *Client) params(req PageRequest) url.Values {
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = c.config.PageSize
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("key", c.config.APIKey)
	if kw := strings.TrimSpace(c.config.Keywords); kw != "" {
		params.Set("keywords", kw)
	}
	params.Set("types", req.Query.Category)
	params.Set("region", req.Query.Region)
	params.Set("city_limit", "true")
	params.Set("page_size", strconv.Itoa(pageSize))
	params.Set("page_num", strconv.Itoa(page))
	params.Set("show_fields", "business")
	params.Set("output", "json")
	return params
}

// do issues one attempt. The attempt deadline is detached from ctx's
// cancellation so run shutdown lets it finish.
func (c *Client) do(ctx context.Context, params url.Values) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
	defer cancel()

	u := *c.endpoint
	u.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	poiRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) fromCache(ctx context.Context, key cache.CacheKey) (Outcome, bool) {
	if c.cache == nil {
		return Outcome{}, false
	}
	body, err := c.cache.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache lookup error")
		}
		return Outcome{}, false
	}
	page, err := poi.DecodePage(body)
	if err != nil || !page.Success() {
		c.logger.Warn().Str("key", key.String()).Msg("Discarding unusable cache entry")
		_ = c.cache.Delete(ctx, key)
		return Outcome{}, false
	}
	return Outcome{Kind: OutcomeSuccess, Page: page, Cached: true}, true
}

func (c *Client) store(ctx context.Context, key cache.CacheKey, body []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Put(ctx, key, body); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache page")
	}
}

func cancelled(err error, attempts, congestion int) Outcome {
	return Outcome{
		Kind: OutcomeTransportFailure,
		Err: &APIError{
			ErrorClass: ErrorClassCancelled,
			Err:        fmt.Errorf("%w: %v", ErrCancelled, err),
		},
		Attempts:   attempts,
		Congestion: congestion,
	}
}
