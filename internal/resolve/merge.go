package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/table"
)

// Merge overlays human-entered coordinates from the manual table onto the
// main table, matching rows by composite key, and writes the result to out.
// Row count and order of the main table never change. A manual value that
// is itself missing never replaces a main value. Both tables must carry the
// key and coordinate columns; otherwise nothing is written.
func (r *Runner) Merge(ctx context.Context, mainPath, manualPath, out string) (*model.MergeReport, error) {
	started := r.now()
	cols := r.cols
	required := append(cols.KeyColumns(), cols.Latitude, cols.Longitude)

	mainTbl, err := table.Load(mainPath)
	if err != nil {
		return nil, eris.Wrap(err, "merge: load main table")
	}
	manual, err := table.Load(manualPath)
	if err != nil {
		return nil, eris.Wrap(err, "merge: load manual table")
	}
	if missing := mainTbl.MissingCols(required...); len(missing) > 0 {
		return nil, eris.Errorf("merge: main table missing columns %v", missing)
	}
	if missing := manual.MissingCols(required...); len(missing) > 0 {
		return nil, eris.Errorf("merge: manual table missing columns %v", missing)
	}

	log := zap.L().With(zap.String("stage", "merge"), zap.String("table", mainPath))

	byKey := make(map[string]int, manual.Len())
	for i := range manual.Rows {
		key := manual.Key(i, cols)
		if first, dup := byKey[key]; dup {
			log.Warn("merge: duplicate manual key, keeping first",
				zap.Int("row", i),
				zap.Int("first_row", first),
				zap.String("name", manual.Get(i, cols.Name)),
			)
			continue
		}
		byKey[key] = i
	}

	report := &model.MergeReport{Rows: mainTbl.Len()}
	for i := range mainTbl.Rows {
		j, ok := byKey[mainTbl.Key(i, cols)]
		if !ok {
			continue
		}
		report.Matched++

		updated := false
		for _, col := range []string{cols.Latitude, cols.Longitude} {
			v := manual.Get(j, col)
			if table.IsMissing(v) {
				continue
			}
			if v != mainTbl.Get(i, col) {
				mainTbl.Set(i, col, v)
				updated = true
			}
		}
		if updated {
			report.Updated++
		}
	}

	mainTbl.NormalizeMissing(cols)
	if err := table.Save(out, mainTbl); err != nil {
		return nil, eris.Wrap(err, "merge: save output")
	}

	log.Info("merge: complete",
		zap.String("manual", manualPath),
		zap.String("output", out),
		zap.Int("rows", report.Rows),
		zap.Int("matched", report.Matched),
		zap.Int("updated", report.Updated),
	)

	remaining := len(mainTbl.MissingRows(cols))
	if err := r.record(ctx, out, model.StageMerged, started, 0, report.Updated, remaining); err != nil {
		return report, err
	}
	return report, nil
}
