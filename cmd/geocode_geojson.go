package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhc-map/mhc-geo/internal/export"
)

var (
	geojsonTable  string
	geojsonOutput string
)

var geocodeGeoJSONCmd = &cobra.Command{
	Use:   "geojson",
	Short: "Write resolved rows as a GeoJSON FeatureCollection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := export.GeoJSONFile(geojsonTable, geojsonOutput, cfg.Table)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d features to %s\n", n, geojsonOutput)
		return nil
	},
}

func init() {
	geocodeGeoJSONCmd.Flags().StringVar(&geojsonTable, "table", "", "resolution table")
	geocodeGeoJSONCmd.Flags().StringVar(&geojsonOutput, "output", "mhc.geojson", "GeoJSON file to write")
	_ = geocodeGeoJSONCmd.MarkFlagRequired("table")
	geocodeCmd.AddCommand(geocodeGeoJSONCmd)
}
