package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	gapsTable  string
	gapsOutput string
)

var geocodeExportGapsCmd = &cobra.Command{
	Use:   "export-gaps",
	Short: "Export rows still missing coordinates for manual entry",
	Long:  "Writes the rows of the resolution table that still lack a coordinate to a .csv or .xlsx file with the same columns.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Runner.ExportGaps(ctx, gapsTable, gapsOutput)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", n, gapsOutput)
		return nil
	},
}

func init() {
	geocodeExportGapsCmd.Flags().StringVar(&gapsTable, "table", "", "resolution table")
	geocodeExportGapsCmd.Flags().StringVar(&gapsOutput, "output", "manual_corrections.xlsx", "manual correction table to write (.csv or .xlsx)")
	_ = geocodeExportGapsCmd.MarkFlagRequired("table")
	geocodeCmd.AddCommand(geocodeExportGapsCmd)
}
