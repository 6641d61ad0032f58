package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, opts: applyOptions(opts)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	source       TEXT NOT NULL,
	quality      TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	rating       INTEGER NOT NULL DEFAULT 0,
	cached_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_runs (
	id          TEXT PRIMARY KEY,
	table_path  TEXT NOT NULL,
	stage       TEXT NOT NULL,
	loops       INTEGER NOT NULL DEFAULT 0,
	resolved    INTEGER NOT NULL DEFAULT 0,
	remaining   INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
CREATE INDEX IF NOT EXISTS idx_stage_runs_table ON stage_runs(table_path, finished_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetGeocode(ctx context.Context, key string) (*geocode.Result, error) {
	query := `SELECT latitude, longitude, source, quality, display_name, rating FROM geocode_cache WHERE address_hash = ?`
	args := []any{key}
	if s.opts.cacheTTL > 0 {
		query += ` AND cached_at > ?`
		args = append(args, time.Now().UTC().Add(-s.opts.cacheTTL))
	}

	var r geocode.Result
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&r.Latitude, &r.Longitude, &r.Source, &r.Quality, &r.DisplayName, &r.Rating)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get geocode")
	}
	r.Matched = true
	return &r, nil
}

const sqliteUpsertGeocode = `
INSERT INTO geocode_cache (address_hash, query, latitude, longitude, source, quality, display_name, rating, cached_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (address_hash) DO UPDATE SET
	query = excluded.query,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	source = excluded.source,
	quality = excluded.quality,
	display_name = excluded.display_name,
	rating = excluded.rating,
	cached_at = excluded.cached_at`

func (s *SQLiteStore) PutGeocode(ctx context.Context, key, query string, result geocode.Result) error {
	if !result.Matched {
		return nil
	}
	row := cacheRow(CacheEntry{Key: key, Query: query, Result: result}, time.Now().UTC())
	_, err := s.db.ExecContext(ctx, sqliteUpsertGeocode, row...)
	return eris.Wrap(err, "sqlite: put geocode")
}

func (s *SQLiteStore) SeedGeocodes(ctx context.Context, entries []CacheEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertGeocode)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed prepare")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, cacheRow(e, now)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed %s", e.Query)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: seed commit")
	}
	return n, nil
}

func (s *SQLiteStore) PurgeGeocodes(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE cached_at <= ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge geocodes")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CacheStats(ctx context.Context) (*CacheStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM geocode_cache GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cache stats")
	}
	defer rows.Close() //nolint:errcheck

	stats := &CacheStats{BySource: make(map[string]int64)}
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache stats")
		}
		stats.BySource[source] = n
		stats.Entries += n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: iterate cache stats")
}

func (s *SQLiteStore) RecordStage(ctx context.Context, run model.StageRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (id, table_path, stage, loops, resolved, remaining, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Table, string(run.Stage), run.Loops, run.Resolved, run.Remaining,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record stage %s", run.Stage)
}

func (s *SQLiteStore) ListStages(ctx context.Context, table string) ([]model.StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, table_path, stage, loops, resolved, remaining, started_at, finished_at
		 FROM stage_runs WHERE table_path = ? ORDER BY finished_at, rowid`,
		table,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stages")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.StageRun
	for rows.Next() {
		run, err := scanStageRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate stages")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanStageRun(row scannable) (*model.StageRun, error) {
	var run model.StageRun
	var stage string
	if err := row.Scan(&run.ID, &run.Table, &stage, &run.Loops, &run.Resolved, &run.Remaining, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, err
	}
	run.Stage = model.Stage(stage)
	return &run, nil
}
