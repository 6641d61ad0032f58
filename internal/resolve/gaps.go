package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/table"
)

// ExportGaps writes the rows of src that still lack a coordinate to dst,
// with the same header. dst may be .csv or .xlsx. src is not modified.
func (r *Runner) ExportGaps(ctx context.Context, src, dst string) (int, error) {
	started := r.now()

	t, err := table.Load(src)
	if err != nil {
		return 0, eris.Wrap(err, "export gaps: load table")
	}
	t.EnsureColumn(r.cols.Latitude)
	t.EnsureColumn(r.cols.Longitude)

	missing := t.MissingRows(r.cols)
	gaps := t.Subset(missing)
	gaps.NormalizeMissing(r.cols)
	if err := table.Save(dst, gaps); err != nil {
		return 0, eris.Wrap(err, "export gaps: save")
	}

	zap.L().Info("export gaps: complete",
		zap.String("table", src),
		zap.String("output", dst),
		zap.Int("rows", len(missing)),
	)

	if err := r.record(ctx, src, model.StageGapsExported, started, 0, 0, len(missing)); err != nil {
		return len(missing), err
	}
	return len(missing), nil
}
