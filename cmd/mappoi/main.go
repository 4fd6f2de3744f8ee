// Command mappoi harvests POI records from the AMap place search API into
// one artifact per (region, category).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/onemotre/MapPOI/internal/config"
	"github.com/spf13/cobra"
)

// flags shared by the subcommands.
type flags struct {
	configPath  string
	regions     []string
	categories  []string
	keywords    string
	workers     int
	concurrency int
	output      string
	formats     []string
	logLevel    string
	pretty      bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "mappoi",
		Short: "Harvest POI records from the AMap place search API",
		Long: `mappoi enumerates every (region, category) pair, pages through the
AMap v5 text search for each one under a global request budget, and writes
one artifact per pair below the output directory.

Configuration comes from a YAML file (--config), then AMAP_API_KEY and
MAPPOI_* environment variables, then command-line flags.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Path to YAML configuration file")
	pf.StringSliceVar(&f.regions, "regions", nil, "Regions to harvest (comma-separated)")
	pf.StringSliceVar(&f.categories, "categories", nil, "Categories to harvest (comma-separated)")
	pf.IntVarP(&f.workers, "workers", "w", 0, "Number of worker groups")

	root.AddCommand(newHarvestCmd(f))
	root.AddCommand(newQueriesCmd(f))
	return root
}

// loadConfig layers flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Read(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("regions") {
		cfg.Harvest.Regions = f.regions
	}
	if changed("categories") {
		cfg.Harvest.Categories = f.categories
	}
	if changed("workers") {
		cfg.Harvest.Workers = f.workers
	}
	if changed("keywords") {
		cfg.API.Keywords = f.keywords
	}
	if changed("concurrency") {
		cfg.Harvest.Concurrency = f.concurrency
	}
	if changed("output") {
		cfg.Output.SetDir(f.output)
	}
	if changed("format") {
		cfg.Output.Formats = f.formats
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("pretty") {
		cfg.Logging.Pretty = f.pretty
	}
	cfg.Normalise()
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
