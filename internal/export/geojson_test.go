package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhc-map/mhc-geo/internal/table"
)

const resolvedCSV = `Name,Address,latitude,longitude
Oak Park,1 Oak Rd,42.1,-88.2
Birch Estates,3 Birch Ct,,
Maple Village,2 Maple Ave,40.69,-89.59
`

type featureJSON struct {
	Type     string `json:"type"`
	Geometry struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]string `json:"properties"`
}

type collectionJSON struct {
	Type     string        `json:"type"`
	Features []featureJSON `json:"features"`
}

func TestWriteGeoJSON(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader(resolvedCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := WriteGeoJSON(&buf, tbl, table.DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var fc collectionJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, []float64{-88.2, 42.1}, f.Geometry.Coordinates)
	assert.Equal(t, map[string]string{"Name": "Oak Park", "Address": "1 Oak Rd"}, f.Properties)
	assert.Equal(t, "Maple Village", fc.Features[1].Properties["Name"])
}

func TestWriteGeoJSON_NoResolvedRows(t *testing.T) {
	tbl := table.New([]string{"Name", "latitude", "longitude"}, [][]string{{"A", "nan", ""}})

	var buf bytes.Buffer
	n, err := WriteGeoJSON(&buf, tbl, table.DefaultColumns())
	require.NoError(t, err)
	assert.Zero(t, n)

	var fc collectionJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Empty(t, fc.Features)
}

func TestGeoJSONFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "t.csv")
	dst := filepath.Join(dir, "t.geojson")
	require.NoError(t, os.WriteFile(src, []byte(resolvedCSV), 0o644))

	n, err := GeoJSONFile(src, dst, table.DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestGeoJSONFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := GeoJSONFile(filepath.Join(dir, "nope.csv"), filepath.Join(dir, "out.geojson"), table.DefaultColumns())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: load table")
}
