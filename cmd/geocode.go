package main

import "github.com/spf13/cobra"

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Run geocoding pipeline stages",
	Long:  "Each subcommand advances a resolution table one stage: bulk -> retry -> retry-full -> export-gaps -> merge.",
}

func init() { rootCmd.AddCommand(geocodeCmd) }
