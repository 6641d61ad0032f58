package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/resolve"
)

var (
	retryTable          string
	retryAddressCol     string
	retryMaxLoops       int
	retryStopNoProgress bool
)

var geocodeRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry missing rows with the same address string",
	Long:  "Reloads the resolution table each pass and re-geocodes rows still missing a coordinate, up to --max-loops passes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRetry(cmd, false)
	},
}

var geocodeRetryFullCmd = &cobra.Command{
	Use:   "retry-full",
	Short: "Retry missing rows with street, city/state and ZIP",
	Long:  "Like retry, but queries \"street, city_state[, zip]\" built from the row's columns.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRetry(cmd, true)
	},
}

func runRetry(cmd *cobra.Command, expanded bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initPipeline(ctx, true)
	if err != nil {
		return err
	}
	defer env.Close()
	defer logClientStats(env.Client)

	opts := resolve.RetryOptions{
		Path:             retryTable,
		AddressColumn:    retryAddressCol,
		MaxLoops:         retryMaxLoops,
		StopOnNoProgress: retryStopNoProgress,
	}
	if !cmd.Flags().Changed("max-loops") {
		opts.MaxLoops = cfg.Retry.SameKeyMaxLoops
		if expanded {
			opts.MaxLoops = cfg.Retry.ExpandedKeyMaxLoops
		}
	}
	if !cmd.Flags().Changed("stop-on-no-progress") {
		opts.StopOnNoProgress = cfg.Retry.StopOnNoProgress
	}

	var report *model.RetryReport
	if expanded {
		report, err = env.Runner.RetryExpandedKey(ctx, opts)
	} else {
		report, err = env.Runner.RetrySameKey(ctx, opts)
	}
	if err != nil {
		return err
	}

	printRetryReport(cmd, report)
	return nil
}

func printRetryReport(cmd *cobra.Command, report *model.RetryReport) {
	out := cmd.OutOrStdout()
	for _, p := range report.Passes {
		fmt.Fprintf(out, "loop %d: %d missing, fixed %d\n", p.Loop, p.Missing, p.Fixed)
	}
	fmt.Fprintln(out, report.Summary())
}

func init() {
	for _, c := range []*cobra.Command{geocodeRetryCmd, geocodeRetryFullCmd} {
		c.Flags().StringVar(&retryTable, "table", "", "resolution table to update in place")
		c.Flags().StringVar(&retryAddressCol, "address-col", "", "address column (default: table.address)")
		c.Flags().BoolVar(&retryStopNoProgress, "stop-on-no-progress", false, "stop early when a pass fixes no rows")
		_ = c.MarkFlagRequired("table")
		geocodeCmd.AddCommand(c)
	}
	geocodeRetryCmd.Flags().IntVar(&retryMaxLoops, "max-loops", 10, "maximum retry passes")
	geocodeRetryFullCmd.Flags().IntVar(&retryMaxLoops, "max-loops", 3, "maximum retry passes")
}
