package main

import (
	"fmt"
	"strings"

	"github.com/onemotre/MapPOI/internal/config"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/onemotre/MapPOI/pkg/scheduler"
	"github.com/spf13/cobra"
)

func newQueriesCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "Print the query space and its partition without calling the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if len(cfg.Harvest.Regions) == 0 {
				return config.ErrNoRegions
			}
			if len(cfg.Harvest.Categories) == 0 {
				return config.ErrNoCategories
			}

			space := query.NewSpace(cfg.Harvest.Regions, cfg.Harvest.Categories)
			groups := scheduler.Partition(space.Queries(), cfg.Harvest.Workers)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d regions x %d categories = %d queries, %d workers\n",
				len(space.Regions()), len(space.Categories()), space.Len(), len(groups))
			for i, g := range groups {
				names := make([]string, len(g))
				for j, q := range g {
					names[j] = q.String()
				}
				fmt.Fprintf(out, "worker %d (%d): %s\n", i, len(g), strings.Join(names, ", "))
			}
			return nil
		},
	}
}
