package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mhc-geo",
	Short: "Geocoding pipeline for manufactured housing community tables",
	Long:  "Resolves MHC addresses to coordinates in operator-driven stages: bulk geocode, bounded retries, manual-gap export and merge of human corrections.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
