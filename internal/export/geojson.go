// Package export writes resolution tables in formats consumed by map tooling.
package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mhc-map/mhc-geo/internal/table"
)

// FeatureCollection builds a GeoJSON FeatureCollection with one Point per
// resolved row. Every other column becomes a string property. Rows without
// a usable coordinate are skipped.
func FeatureCollection(t *table.Table, cols table.Columns) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for i := range t.Rows {
		coord, ok := t.Coordinate(i, cols)
		if !ok {
			continue
		}

		props := make(map[string]any, len(t.Header))
		for j, col := range t.Header {
			if col == cols.Latitude || col == cols.Longitude {
				continue
			}
			if j < len(t.Rows[i]) {
				props[col] = t.Rows[i][j]
			}
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{coord.Lon, coord.Lat}),
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON encodes the resolved rows of t to w and returns the number of
// features written.
func WriteGeoJSON(w io.Writer, t *table.Table, cols table.Columns) (int, error) {
	fc := FeatureCollection(t, cols)
	data, err := json.Marshal(fc)
	if err != nil {
		return 0, eris.Wrap(err, "export: marshal geojson")
	}
	if _, err := w.Write(data); err != nil {
		return 0, eris.Wrap(err, "export: write geojson")
	}
	return len(fc.Features), nil
}

// GeoJSONFile loads the table at src and writes its resolved rows to dst.
func GeoJSONFile(src, dst string, cols table.Columns) (int, error) {
	t, err := table.Load(src)
	if err != nil {
		return 0, eris.Wrap(err, "export: load table")
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "export: create output")
	}
	n, err := WriteGeoJSON(f, t, cols)
	if err != nil {
		f.Close() //nolint:errcheck
		return 0, err
	}
	return n, eris.Wrap(f.Close(), "export: close output")
}
