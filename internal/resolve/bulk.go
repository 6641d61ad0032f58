package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/table"
)

// BulkOptions selects the input and output of a bulk pass.
type BulkOptions struct {
	Input  string
	Output string
	// AddressColumn overrides the configured address column.
	AddressColumn string
}

// Bulk geocodes every unresolved row of the input table once and writes the
// result to the output path. Rows that already hold a coordinate are kept
// and counted as resolved. The output is persisted every checkpoint and
// after the last row.
func (r *Runner) Bulk(ctx context.Context, opts BulkOptions) (*model.BulkReport, error) {
	if err := r.requireResolver(); err != nil {
		return nil, err
	}
	started := r.now()
	cols := r.cols
	if opts.AddressColumn != "" {
		cols.Address = opts.AddressColumn
	}
	if opts.Output == "" {
		opts.Output = opts.Input
	}

	log := zap.L().With(zap.String("stage", "bulk"), zap.String("input", opts.Input))

	t, err := table.Load(opts.Input)
	if err != nil {
		return nil, eris.Wrap(err, "bulk: load input")
	}
	if err := t.Require(cols.Address); err != nil {
		return nil, eris.Wrap(err, "bulk: input")
	}
	t.EnsureColumn(cols.Latitude)
	t.EnsureColumn(cols.Longitude)
	t.NormalizeMissing(cols)

	report := &model.BulkReport{Total: t.Len()}
	pending := 0
	for i := range t.Rows {
		if err := ctx.Err(); err != nil {
			if saveErr := table.Save(opts.Output, t); saveErr != nil {
				log.Warn("bulk: checkpoint on cancel failed", zap.Error(saveErr))
			}
			return report, eris.Wrap(err, "bulk: cancelled")
		}

		if !t.RowMissing(i, cols) {
			report.Resolved++
			continue
		}

		addr := t.Get(i, cols.Address)
		if table.IsMissing(addr) {
			report.Unresolved++
			continue
		}

		res := r.resolver.Resolve(ctx, addr)
		if res.Matched {
			t.SetCoordinate(i, cols, res.Latitude, res.Longitude)
			report.Resolved++
		} else {
			report.Unresolved++
			log.Debug("bulk: no match", zap.Int("row", i), zap.String("address", addr))
		}

		pending++
		if pending >= r.checkpointEvery {
			if err := table.Save(opts.Output, t); err != nil {
				return report, eris.Wrap(err, "bulk: checkpoint")
			}
			pending = 0
		}
	}

	if err := table.Save(opts.Output, t); err != nil {
		return report, eris.Wrap(err, "bulk: save output")
	}

	log.Info("bulk: complete",
		zap.String("output", opts.Output),
		zap.Int("total", report.Total),
		zap.Int("resolved", report.Resolved),
		zap.Int("unresolved", report.Unresolved),
	)

	if err := r.record(ctx, opts.Output, model.StageBulkResolved, started, 0, report.Resolved, report.Unresolved); err != nil {
		return report, err
	}
	return report, nil
}
