package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig names the target of a BulkUpsert. Every column other than Key
// is overwritten when the key already exists.
type UpsertConfig struct {
	Table   string
	Columns []string
	Key     string
}

// BulkUpsert COPYs rows into a transaction-scoped staging table and merges
// them into cfg.Table with a single INSERT ... ON CONFLICT. Rows must not
// repeat a key. It returns the number of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 || cfg.Key == "" {
		return 0, eris.Errorf("db: upsert %s: columns and key are required", cfg.Table)
	}

	target := pgx.Identifier{cfg.Table}.Sanitize()
	staging := "_tmp_upsert_" + cfg.Table
	cols := make([]string, len(cfg.Columns))
	var sets []string
	for i, c := range cfg.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
		if c != cfg.Key {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", cols[i], cols[i]))
		}
	}
	colList := strings.Join(cols, ", ")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(), target)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: create staging table", cfg.Table)
	}
	if _, err := CopyFrom(ctx, tx, staging, cfg.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s", cfg.Table)
	}

	merge := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s)",
		target, colList, colList, pgx.Identifier{staging}.Sanitize(), pgx.Identifier{cfg.Key}.Sanitize())
	if len(sets) == 0 {
		merge += " DO NOTHING"
	} else {
		merge += " DO UPDATE SET " + strings.Join(sets, ", ")
	}
	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: merge", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}
