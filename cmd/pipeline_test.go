package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/table"
)

// newNominatimServer answers jsonv2 searches from a fixed address map.
func newNominatimServer(t *testing.T, places map[string][2]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ll, ok := places[r.URL.Query().Get("q")]
		if !ok {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"lat":          ll[0],
			"lon":          ll[1],
			"display_name": r.URL.Query().Get("q") + ", USA",
			"place_rank":   30,
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupWorkspace moves into a temp dir and points the store and provider at
// test-local resources.
func setupWorkspace(t *testing.T, nominatimURL string) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	t.Setenv("MHCGEO_STORE_DRIVER", "sqlite")
	t.Setenv("MHCGEO_STORE_DATABASE_URL", filepath.Join(dir, "mhc-geo.db"))
	t.Setenv("MHCGEO_GEOCODE_NOMINATIM_URL", nominatimURL)
	t.Setenv("MHCGEO_GEOCODE_RATE_LIMIT_RPS", "1000")
	t.Setenv("MHCGEO_LOG_LEVEL", "error")
	return dir
}

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between executions.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPipeline_EndToEnd(t *testing.T) {
	srv := newNominatimServer(t, map[string][2]string{
		"1 Oak Rd":    {"42.5", "-88.1"},
		"2 Maple Ave": {"40.69", "-89.59"},
	})
	dir := setupWorkspace(t, srv.URL)

	raw := filepath.Join(dir, "raw.csv")
	resolved := filepath.Join(dir, "resolved.csv")
	require.NoError(t, os.WriteFile(raw, []byte(`Name,Address,City State,ZIP
Oak Park,1 Oak Rd,"Springfield, IL",60002
Maple Village,2 Maple Ave,"Peoria, IL",61602
Birch Estates,3 Birch Ct,"Joliet, IL",60431.0
`), 0o644))

	out, err := execute(t, "geocode", "bulk", "--input", raw, "--output", resolved)
	require.NoError(t, err)
	assert.Contains(t, out, "bulk: 3 rows, 2 resolved, 1 unresolved")

	out, err = execute(t, "geocode", "retry", "--table", resolved, "--max-loops", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped after max_loops=2, 1 rows still missing")

	out, err = execute(t, "geocode", "retry-full", "--table", resolved, "--max-loops", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped after max_loops=1, 1 rows still missing")

	gaps := filepath.Join(dir, "gaps.csv")
	out, err = execute(t, "geocode", "export-gaps", "--table", resolved, "--output", gaps)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 rows")

	manual, err := table.Load(gaps)
	require.NoError(t, err)
	require.Equal(t, 1, manual.Len())
	manual.Set(0, "latitude", "41.52")
	manual.Set(0, "longitude", "-88.08")
	manual.Set(0, "ZIP", "60431")
	require.NoError(t, table.Save(gaps, manual))

	out, err = execute(t, "geocode", "merge", "--table", resolved, "--manual", gaps)
	require.NoError(t, err)
	assert.Contains(t, out, "merge: 3 rows, 1 matched, 1 updated")

	final, err := table.Load(resolved)
	require.NoError(t, err)
	assert.Empty(t, final.MissingRows(table.DefaultColumns()))
	assert.Equal(t, "41.52", final.Get(2, "latitude"))

	out, err = execute(t, "status", "--table", resolved, "--format", "yaml")
	require.NoError(t, err)
	var st struct {
		State   model.Stage `yaml:"state"`
		Missing int         `yaml:"missing"`
		History []struct {
			Stage model.Stage `yaml:"stage"`
		} `yaml:"history"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &st))
	assert.Equal(t, model.StageMerged, st.State)
	assert.Equal(t, 0, st.Missing)
	require.Len(t, st.History, 5)
	assert.Equal(t, model.StageBulkResolved, st.History[0].Stage)
	assert.Equal(t, model.StageGapsExported, st.History[3].Stage)

	out, err = execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "entries: 2")
	assert.Contains(t, out, "nominatim")

	geo := filepath.Join(dir, "mhc.geojson")
	out, err = execute(t, "geocode", "geojson", "--table", resolved, "--output", geo)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 features")
}

func TestMergeCommand_SchemaMismatch(t *testing.T) {
	dir := setupWorkspace(t, "http://127.0.0.1:0")

	mainPath := filepath.Join(dir, "main.csv")
	manual := filepath.Join(dir, "manual.csv")
	out := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(mainPath, []byte("Name,Address,City State,ZIP,latitude,longitude\nA,1,C,1,,\n"), 0o644))
	require.NoError(t, os.WriteFile(manual, []byte("Name,Address,latitude,longitude\nA,1,2,3\n"), 0o644))

	_, err := execute(t, "geocode", "merge", "--table", mainPath, "--manual", manual, "--output", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge: manual table missing columns [City State ZIP]")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCacheSeedAndPurge(t *testing.T) {
	dir := setupWorkspace(t, "http://127.0.0.1:0")

	src := filepath.Join(dir, "resolved.csv")
	require.NoError(t, os.WriteFile(src, []byte(`Name,Address,latitude,longitude
A,1 Main St,1.5,2.5
B,2 Main St,,
C,,3,4
`), 0o644))

	out, err := execute(t, "cache", "seed", "--table", src)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 1 cache entries")

	out, err = execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "entries: 1")
	assert.Contains(t, out, "seed")

	out, err = execute(t, "cache", "purge", "--older-than-days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 cache entries")
}

func TestSeedEntries(t *testing.T) {
	tbl := table.New(
		[]string{"Name", "Address", "latitude", "longitude"},
		[][]string{
			{"A", "1 Main St", "1.5", "2.5"},
			{"B", "2 Main St", "nan", ""},
			{"C", "", "3", "4"},
		},
	)

	entries := seedEntries(tbl, table.DefaultColumns(), "manual")
	require.Len(t, entries, 1)
	assert.Equal(t, "1 Main St", entries[0].Query)
	assert.NotEmpty(t, entries[0].Key)
	assert.True(t, entries[0].Result.Matched)
	assert.Equal(t, "manual", entries[0].Result.Source)
	assert.InDelta(t, 2.5, entries[0].Result.Longitude, 1e-9)
}

func TestWriteStatusText(t *testing.T) {
	tbl := table.New(
		[]string{"Name", "Address", "latitude", "longitude"},
		[][]string{{"A", "1 Main St", "1", "2"}, {"B", "2 Main St", "", ""}},
	)
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.StageRun{
		{Stage: model.StageBulkResolved, Resolved: 1, Remaining: 1, FinishedAt: finished},
	}

	st := buildStatus("parks.csv", tbl, table.DefaultColumns(), runs)
	assert.Equal(t, model.StageBulkResolved, st.State)
	assert.Equal(t, model.StageSameKeyRetried, st.Next)
	assert.Equal(t, 1, st.Missing)

	var buf bytes.Buffer
	writeStatusText(&buf, st)
	out := buf.String()
	assert.Contains(t, out, "state:   bulk_resolved (next: same_key_retried)")
	assert.Contains(t, out, "missing: 1 of 2 rows")
	assert.True(t, strings.Contains(out, "2026-03-01 12:00:00"))
}

func TestWriteStatusText_NoHistory(t *testing.T) {
	tbl := table.New([]string{"Name"}, nil)
	st := buildStatus("t.csv", tbl, table.DefaultColumns(), nil)
	assert.Equal(t, model.StageEmpty, st.State)

	var buf bytes.Buffer
	writeStatusText(&buf, st)
	assert.NotContains(t, buf.String(), "history:")
	assert.Contains(t, buf.String(), "missing: 0 of 0 rows")
}
