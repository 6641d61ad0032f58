package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mhc-map/mhc-geo/internal/db"
	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	opts    options
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, opts: applyOptions(opts), closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that query
// directly (the TIGER geocode provider).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	source       TEXT NOT NULL,
	quality      TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	rating       INTEGER NOT NULL DEFAULT 0,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stage_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	table_path  TEXT NOT NULL,
	stage       TEXT NOT NULL,
	loops       INTEGER NOT NULL DEFAULT 0,
	resolved    INTEGER NOT NULL DEFAULT 0,
	remaining   INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
CREATE INDEX IF NOT EXISTS idx_stage_runs_table ON stage_runs(table_path, finished_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetGeocode(ctx context.Context, key string) (*geocode.Result, error) {
	query := `SELECT latitude, longitude, source, quality, display_name, rating FROM geocode_cache WHERE address_hash = $1`
	args := []any{key}
	if s.opts.cacheTTL > 0 {
		query += ` AND cached_at > $2`
		args = append(args, time.Now().UTC().Add(-s.opts.cacheTTL))
	}

	var r geocode.Result
	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&r.Latitude, &r.Longitude, &r.Source, &r.Quality, &r.DisplayName, &r.Rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get geocode")
	}
	r.Matched = true
	return &r, nil
}

func (s *PostgresStore) PutGeocode(ctx context.Context, key, query string, result geocode.Result) error {
	if !result.Matched {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (address_hash, query, latitude, longitude, source, quality, display_name, rating, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address_hash) DO UPDATE SET
			query = EXCLUDED.query,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			source = EXCLUDED.source,
			quality = EXCLUDED.quality,
			display_name = EXCLUDED.display_name,
			rating = EXCLUDED.rating,
			cached_at = EXCLUDED.cached_at`,
		cacheRow(CacheEntry{Key: key, Query: query, Result: result}, time.Now().UTC())...,
	)
	return eris.Wrap(err, "postgres: put geocode")
}

func (s *PostgresStore) SeedGeocodes(ctx context.Context, entries []CacheEntry) (int64, error) {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(entries))
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		// ON CONFLICT cannot touch the same row twice in one statement.
		if seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		rows = append(rows, cacheRow(e, now))
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:   "geocode_cache",
		Columns: cacheColumns,
		Key:     "address_hash",
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: seed geocodes")
	}
	return n, nil
}

func (s *PostgresStore) PurgeGeocodes(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM geocode_cache WHERE cached_at <= $1`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge geocodes")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CacheStats(ctx context.Context) (*CacheStats, error) {
	rows, err := s.pool.Query(ctx, `SELECT source, COUNT(*) FROM geocode_cache GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cache stats")
	}
	defer rows.Close()

	stats := &CacheStats{BySource: make(map[string]int64)}
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache stats")
		}
		stats.BySource[source] = n
		stats.Entries += n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterate cache stats")
}

func (s *PostgresStore) RecordStage(ctx context.Context, run model.StageRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stage_runs (id, table_path, stage, loops, resolved, remaining, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Table, string(run.Stage), run.Loops, run.Resolved, run.Remaining,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: record stage %s", run.Stage)
}

func (s *PostgresStore) ListStages(ctx context.Context, table string) ([]model.StageRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, table_path, stage, loops, resolved, remaining, started_at, finished_at
		 FROM stage_runs WHERE table_path = $1 ORDER BY finished_at`,
		table,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stages")
	}
	defer rows.Close()

	var runs []model.StageRun
	for rows.Next() {
		run, err := scanStageRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate stages")
}
