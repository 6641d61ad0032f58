package resolve

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/table"
	"github.com/mhc-map/mhc-geo/pkg/geocode"
)

// fakeResolver answers from a fixed map. failFirst lists queries that fail
// on their first attempt and succeed afterwards.
type fakeResolver struct {
	mu        sync.Mutex
	answers   map[string]geocode.Result
	failFirst map[string]bool
	queries   []string
	onResolve func(query string)
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		answers:   make(map[string]geocode.Result),
		failFirst: make(map[string]bool),
	}
}

func (f *fakeResolver) add(query string, lat, lon float64) *fakeResolver {
	f.answers[query] = geocode.Result{Latitude: lat, Longitude: lon, Source: "fake", Matched: true}
	return f
}

func (f *fakeResolver) Resolve(_ context.Context, query string) geocode.Result {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	fail := f.failFirst[query]
	delete(f.failFirst, query)
	hook := f.onResolve
	f.mu.Unlock()

	if hook != nil {
		hook(query)
	}
	if fail {
		return geocode.Result{Source: "cascade"}
	}
	if res, ok := f.answers[query]; ok {
		return res
	}
	return geocode.Result{Source: "cascade"}
}

func (f *fakeResolver) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type memStageLog struct {
	runs []model.StageRun
	err  error
}

func (m *memStageLog) RecordStage(_ context.Context, run model.StageRun) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadTable(t *testing.T, path string) *table.Table {
	t.Helper()
	tbl, err := table.Load(path)
	require.NoError(t, err)
	return tbl
}

func saveTable(path string, t *table.Table) error {
	return table.Save(path, t)
}
