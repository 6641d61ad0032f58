package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mhc-map/mhc-geo/internal/resolve"
)

var (
	bulkInput      string
	bulkOutput     string
	bulkAddressCol string
)

var geocodeBulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Geocode every row of a raw table once",
	Long:  "Reads the input table, adds latitude/longitude columns, geocodes each row's address once and writes the resolution table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()
		defer logClientStats(env.Client)

		report, err := env.Runner.Bulk(ctx, resolve.BulkOptions{
			Input:         bulkInput,
			Output:        bulkOutput,
			AddressColumn: bulkAddressCol,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "bulk: %d rows, %d resolved, %d unresolved\n",
			report.Total, report.Resolved, report.Unresolved)
		return nil
	},
}

func init() {
	geocodeBulkCmd.Flags().StringVar(&bulkInput, "input", "", "raw input table (.csv or .xlsx)")
	geocodeBulkCmd.Flags().StringVar(&bulkOutput, "output", "", "resolution table to write (default: overwrite input)")
	geocodeBulkCmd.Flags().StringVar(&bulkAddressCol, "address-col", "", "address column (default: table.address)")
	_ = geocodeBulkCmd.MarkFlagRequired("input")
	geocodeCmd.AddCommand(geocodeBulkCmd)
}
