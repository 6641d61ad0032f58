package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/store"
	"github.com/mhc-map/mhc-geo/internal/table"
	"github.com/mhc-map/mhc-geo/pkg/geocode"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the geocode cache",
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("store migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var cachePurgeDays int

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cache entries older than --older-than-days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.PurgeGeocodes(ctx, time.Duration(cachePurgeDays)*24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d cache entries\n", n)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts by provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Store.CacheStats(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "entries: %d\n", stats.Entries)
		sources := make([]string, 0, len(stats.BySource))
		for s := range stats.BySource {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		for _, s := range sources {
			fmt.Fprintf(out, "  %-12s %d\n", s, stats.BySource[s])
		}
		return nil
	},
}

var (
	cacheSeedTable  string
	cacheSeedSource string
)

var cacheSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load resolved rows of a table into the cache",
	Long:  "Stores each resolved row's coordinate under its address query so later runs on related tables skip the network.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		t, err := table.Load(cacheSeedTable)
		if err != nil {
			return eris.Wrap(err, "cache seed: load table")
		}
		entries := seedEntries(t, cfg.Table, cacheSeedSource)

		n, err := env.Store.SeedGeocodes(ctx, entries)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d cache entries from %s\n", n, cacheSeedTable)
		return nil
	},
}

// seedEntries converts the resolved rows of t into cache entries keyed by
// the same-key address query.
func seedEntries(t *table.Table, cols table.Columns, source string) []store.CacheEntry {
	var entries []store.CacheEntry
	for i := range t.Rows {
		coord, ok := t.Coordinate(i, cols)
		if !ok {
			continue
		}
		query := t.Get(i, cols.Address)
		if table.IsMissing(query) {
			continue
		}
		entries = append(entries, store.CacheEntry{
			Key:   geocode.CacheKey(query),
			Query: query,
			Result: geocode.Result{
				Latitude:  coord.Lat,
				Longitude: coord.Lon,
				Source:    source,
				Quality:   "manual",
				Matched:   true,
			},
		})
	}
	return entries
}

func init() {
	cachePurgeCmd.Flags().IntVar(&cachePurgeDays, "older-than-days", 90, "purge entries cached more than this many days ago")
	cacheSeedCmd.Flags().StringVar(&cacheSeedTable, "table", "", "resolved table to seed from")
	cacheSeedCmd.Flags().StringVar(&cacheSeedSource, "source", "seed", "source recorded on seeded entries")
	_ = cacheSeedCmd.MarkFlagRequired("table")

	cacheCmd.AddCommand(cacheMigrateCmd, cachePurgeCmd, cacheStatsCmd, cacheSeedCmd)
	rootCmd.AddCommand(cacheCmd)
}
