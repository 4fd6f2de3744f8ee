package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/onemotre/MapPOI/internal/config"
	"github.com/onemotre/MapPOI/pkg/cache"
	"github.com/onemotre/MapPOI/pkg/client"
	"github.com/onemotre/MapPOI/pkg/harvest"
	"github.com/onemotre/MapPOI/pkg/logging"
	"github.com/onemotre/MapPOI/pkg/metrics"
	"github.com/onemotre/MapPOI/pkg/poi"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/onemotre/MapPOI/pkg/ratelimit"
	"github.com/onemotre/MapPOI/pkg/scheduler"
	"github.com/onemotre/MapPOI/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// errIncomplete marks a run where results were lost.
var errIncomplete = errors.New("harvest incomplete: some results were not stored")

func newHarvestCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest every (region, category) query and write the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sum, err := runHarvest(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			if sum.Failed() {
				return errIncomplete
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.keywords, "keywords", "", "Keywords sent with every query")
	fl.IntVar(&f.concurrency, "concurrency", 0, "Global in-flight request limit")
	fl.StringVarP(&f.output, "output", "o", "", "Output directory")
	fl.StringSliceVar(&f.formats, "format", nil, "Output formats: xlsx, csv, sqlite")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fl.BoolVar(&f.pretty, "pretty", false, "Human-readable console logs")
	return cmd
}

// runHarvest wires the pipeline from cfg and runs it to completion.
func runHarvest(ctx context.Context, cfg *config.Config, logOut io.Writer) (scheduler.Summary, error) {
	queries := query.NewSpace(cfg.Harvest.Regions, cfg.Harvest.Categories).Queries()
	if cfg.Output.Has(config.FormatXLSX) || cfg.Output.Has(config.FormatCSV) {
		if err := storage.CheckPaths(queries); err != nil {
			return scheduler.Summary{}, err
		}
	}

	runID := uuid.NewString()

	logCfg := logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: logOut,
		RunID:  runID,
	}
	if cfg.Logging.File != "" {
		fh, err := logging.OpenFile(cfg.Logging.File)
		if err != nil {
			return scheduler.Summary{}, err
		}
		defer fh.Close()
		logCfg.File = fh
	}
	logger := logging.Setup(logCfg)

	gate, err := ratelimit.NewGate(cfg.Harvest.Concurrency, cfg.Harvest.RequestsPerSecond)
	if err != nil {
		return scheduler.Summary{}, err
	}

	pageCache, closeCache := openCache(ctx, cfg.Cache, logger)
	defer closeCache()

	api, err := client.New(client.Config{
		BaseURL:         cfg.API.BaseURL,
		APIKey:          cfg.API.Key,
		Keywords:        cfg.API.Keywords,
		PageSize:        cfg.API.PageSize,
		Timeout:         cfg.API.Timeout.Duration,
		RetryDelay:      cfg.Harvest.RetryDelay.Duration,
		CongestionDelay: cfg.Harvest.CongestionDelay.Duration,
		CongestionCodes: cfg.Harvest.CongestionCodes,
		Gate:            gate,
		Cache:           pageCache,
		Logger:          logger,
	})
	if err != nil {
		return scheduler.Summary{}, fmt.Errorf("create client: %w", err)
	}

	sink, closeSinks, err := openSinks(cfg.Output, runID, logger)
	if err != nil {
		return scheduler.Summary{}, err
	}
	defer closeSinks()

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(ctx))
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, addr, logger); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	coord := harvest.NewCoordinator(api, poi.NewParser(), harvest.Options{
		MaxPages:    cfg.API.MaxPages,
		PageSize:    cfg.API.PageSize,
		RetryBudget: cfg.Harvest.RetryBudget,
		Logger:      logger,
	})
	sched := scheduler.New(coord, sink, scheduler.Options{
		Workers:   cfg.Harvest.Workers,
		MaxActive: cfg.Harvest.MaxActiveQueries,
		Gate:      gate,
		Logger:    logger,
	})

	return sched.Run(ctx, queries), nil
}

// openCache connects the page cache. An unreachable Redis disables caching.
func openCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (*cache.Manager, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	m := cache.NewManager(rdb, cfg.TTL.Duration)
	if err := m.Ping(ctx); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, running without page cache")
		rdb.Close()
		return nil, func() {}
	}
	ev := logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", m.TTL())
	if n, err := m.Pages(ctx); err == nil {
		ev = ev.Int("cached_pages", n)
	}
	ev.Msg("Page cache enabled")
	return m, func() { rdb.Close() }
}

// openSinks builds one sink per configured output format.
func openSinks(cfg config.OutputConfig, runID string, logger zerolog.Logger) (storage.Sink, func(), error) {
	var (
		sinks   storage.MultiSink
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close sink")
			}
		}
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}

	for _, name := range cfg.Formats {
		switch name {
		case config.FormatSQLite:
			s, err := storage.OpenSQLite(cfg.SQLitePath, runID, logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, s.Close)
			sinks = append(sinks, s)
		default:
			format, err := storage.ParseFormat(name)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			s, err := storage.NewFileSink(cfg.Dir, format, logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, s)
		}
	}
	return sinks, closeAll, nil
}
