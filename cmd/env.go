package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/config"
	"github.com/mhc-map/mhc-geo/internal/resolve"
	"github.com/mhc-map/mhc-geo/internal/store"
	"github.com/mhc-map/mhc-geo/pkg/geocode"
)

// pipelineEnv bundles what the geocode commands need.
type pipelineEnv struct {
	Store  store.Store
	Client *geocode.Client
	Runner *resolve.Runner
}

// Close releases the store.
func (e *pipelineEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var opts []store.Option
	if c.Cache.TTLDays > 0 {
		opts = append(opts, store.WithCacheTTL(time.Duration(c.Cache.TTLDays)*24*time.Hour))
	}

	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(c.Store.DatabaseURL, opts...)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		}, opts...)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initClient(c *config.Config, st store.Store) (*geocode.Client, error) {
	settings := geocode.Settings{
		HTTPClient:   &http.Client{Timeout: time.Duration(c.Geocode.TimeoutSecs) * time.Second},
		RateLimitRPS: c.Geocode.RateLimitRPS,
		UserAgent:    c.Geocode.UserAgent,
		NominatimURL: c.Geocode.NominatimURL,
		CountryCodes: c.Geocode.CountryCodes,
		GoogleAPIKey: c.Geocode.GoogleAPIKey,
		MaxRating:    c.Geocode.TigerMaxRating,
	}
	if pg, ok := st.(*store.PostgresStore); ok {
		settings.TigerPool = pg.Pool()
	}

	providers, err := geocode.NewProviders(c.Geocode.Providers, settings)
	if err != nil {
		return nil, err
	}

	var opts []geocode.Option
	if c.Cache.Enabled && st != nil {
		opts = append(opts, geocode.WithCache(st))
	}
	return geocode.NewClient(providers, opts...), nil
}

// initPipeline opens the store and, when withClient is set, the geocode
// client. Commands that never geocode pass false.
func initPipeline(ctx context.Context, withClient bool) (*pipelineEnv, error) {
	mode := "store"
	if withClient {
		mode = "geocode"
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	var resolver geocode.Resolver
	if withClient {
		client, err := initClient(cfg, st)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Client = client
		resolver = client
	}

	env.Runner = resolve.NewRunner(resolver,
		resolve.WithStageLog(st),
		resolve.WithColumns(cfg.Table),
		resolve.WithCheckpointEvery(cfg.Retry.CheckpointEvery),
	)
	return env, nil
}

func logClientStats(c *geocode.Client) {
	if c == nil {
		return
	}
	s := c.Stats()
	zap.L().Info("geocode: client stats",
		zap.Int64("lookups", s.Lookups),
		zap.Int64("cache_hits", s.CacheHits),
		zap.Int64("matched", s.Matched),
		zap.Int64("failures", s.Failures),
	)
}
