// Package geocode resolves free-text addresses to coordinates. A Client
// tries a list of providers (Nominatim, Census, Google, PostGIS TIGER) in
// order and never fails: every lookup problem collapses to an unmatched
// Result.
package geocode

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/resilience"
)

// Result holds the geocoding output for a query.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Source      string  `json:"source"`  // provider name, "cache" rows keep the original provider
	Quality     string  `json:"quality"` // "rooftop", "range", "centroid", "approximate"
	DisplayName string  `json:"display_name,omitempty"`
	Rating      int     `json:"rating,omitempty"`
	Matched     bool    `json:"matched"`
}

// Resolver turns a free-text address into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, query string) Result
}

// Cache stores matched results keyed by CacheKey.
type Cache interface {
	// GetGeocode returns nil, nil on a miss.
	GetGeocode(ctx context.Context, key string) (*Result, error)
	PutGeocode(ctx context.Context, key, query string, result Result) error
}

// Stats counts lookups made through a Client.
type Stats struct {
	Lookups   int64 `json:"lookups"`
	CacheHits int64 `json:"cache_hits"`
	Matched   int64 `json:"matched"`
	Failures  int64 `json:"failures"`
}

// Option configures the Client.
type Option func(*Client)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// Client tries geocode providers in order until one matches.
type Client struct {
	providers []Provider
	cache     Cache

	lookups   atomic.Int64
	cacheHits atomic.Int64
	matched   atomic.Int64
	failures  atomic.Int64
}

// NewClient creates a Client over the given providers.
func NewClient(providers []Provider, opts ...Option) *Client {
	c := &Client{providers: providers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve implements Resolver.
func (c *Client) Resolve(ctx context.Context, query string) Result {
	return c.Lookup(ctx, query)
}

// Lookup geocodes query, consulting the cache first. Provider errors are
// logged and skipped; only matched results are cached so unresolved queries
// stay eligible for retry.
func (c *Client) Lookup(ctx context.Context, query string) Result {
	q := strings.TrimSpace(query)
	if q == "" {
		return Result{Source: "cascade"}
	}
	c.lookups.Add(1)

	key := CacheKey(q)
	if c.cache != nil {
		cached, err := c.cache.GetGeocode(ctx, key)
		if err != nil {
			zap.L().Debug("geocode: cache read failed", zap.String("query", q), zap.Error(err))
		} else if cached != nil && cached.Matched {
			c.cacheHits.Add(1)
			c.matched.Add(1)
			return *cached
		}
	}

	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, q)
		if err != nil {
			c.failures.Add(1)
			logProviderError(p.Name(), q, err)
			continue
		}
		if result == nil || !result.Matched {
			continue
		}

		c.matched.Add(1)
		if c.cache != nil {
			if err := c.cache.PutGeocode(ctx, key, q, *result); err != nil {
				zap.L().Warn("geocode: cache write failed", zap.String("query", q), zap.Error(err))
			}
		}
		return *result
	}

	return Result{Matched: false, Source: "cascade"}
}

// Stats returns a snapshot of the lookup counters.
func (c *Client) Stats() Stats {
	return Stats{
		Lookups:   c.lookups.Load(),
		CacheHits: c.cacheHits.Load(),
		Matched:   c.matched.Load(),
		Failures:  c.failures.Load(),
	}
}

func logProviderError(provider, query string, err error) {
	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("query", query),
		zap.Error(err),
	}
	switch resilience.Classify(err) {
	case resilience.ClassCancelled:
		zap.L().Debug("geocode: lookup cancelled", fields...)
	case resilience.ClassTransient:
		zap.L().Debug("geocode: transient provider error, trying next", fields...)
	default:
		zap.L().Warn("geocode: provider error, trying next", fields...)
	}
}
