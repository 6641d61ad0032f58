package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	mergeTable  string
	mergeManual string
	mergeOutput string
)

var geocodeMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge manually entered coordinates into the resolution table",
	Long:  "Matches manual rows to the resolution table by (Name, Address, City State, ZIP) and copies non-missing manual coordinates over.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		out := mergeOutput
		if out == "" {
			out = mergeTable
		}
		report, err := env.Runner.Merge(ctx, mergeTable, mergeManual, out)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "merge: %d rows, %d matched, %d updated -> %s\n",
			report.Rows, report.Matched, report.Updated, out)
		return nil
	},
}

func init() {
	geocodeMergeCmd.Flags().StringVar(&mergeTable, "table", "", "resolution table")
	geocodeMergeCmd.Flags().StringVar(&mergeManual, "manual", "", "edited manual correction table (.csv or .xlsx)")
	geocodeMergeCmd.Flags().StringVar(&mergeOutput, "output", "", "merged table to write (default: overwrite --table)")
	_ = geocodeMergeCmd.MarkFlagRequired("table")
	_ = geocodeMergeCmd.MarkFlagRequired("manual")
	geocodeCmd.AddCommand(geocodeMergeCmd)
}
