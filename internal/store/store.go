// Package store persists the geocode cache and the pipeline stage history.
package store

import (
	"context"
	"time"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/pkg/geocode"
)

// CacheEntry is one geocode result to seed into the cache.
type CacheEntry struct {
	Key    string
	Query  string
	Result geocode.Result
}

// CacheStats summarizes the geocode cache.
type CacheStats struct {
	Entries  int64            `json:"entries" yaml:"entries"`
	BySource map[string]int64 `json:"by_source" yaml:"by_source"`
}

// Store defines the persistence interface for the geocoding pipeline.
type Store interface {
	// Geocode cache
	GetGeocode(ctx context.Context, key string) (*geocode.Result, error)
	PutGeocode(ctx context.Context, key, query string, result geocode.Result) error
	SeedGeocodes(ctx context.Context, entries []CacheEntry) (int64, error)
	PurgeGeocodes(ctx context.Context, olderThan time.Duration) (int64, error)
	CacheStats(ctx context.Context) (*CacheStats, error)

	// Stage history
	RecordStage(ctx context.Context, run model.StageRun) error
	ListStages(ctx context.Context, table string) ([]model.StageRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	cacheTTL time.Duration
}

// WithCacheTTL ignores cache entries older than ttl. Zero disables expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.cacheTTL = ttl
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// cacheColumns is the column order used by seed upserts.
var cacheColumns = []string{"address_hash", "query", "latitude", "longitude", "source", "quality", "display_name", "rating", "cached_at"}

func cacheRow(e CacheEntry, now time.Time) []any {
	r := e.Result
	return []any{e.Key, e.Query, r.Latitude, r.Longitude, r.Source, r.Quality, r.DisplayName, r.Rating, now}
}
