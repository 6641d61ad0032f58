package main

import (
	"encoding/json"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeLookupCmd = &cobra.Command{
	Use:   "lookup [address]",
	Short: "Geocode a single address and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Client.Lookup(ctx, strings.Join(args, " "))

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "lookup: encode result")
	},
}

func init() {
	geocodeCmd.AddCommand(geocodeLookupCmd)
}
