package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/table"
)

// RetryOptions bounds a retry loop over a resolution table.
type RetryOptions struct {
	Path string
	// AddressColumn overrides the configured address column.
	AddressColumn    string
	MaxLoops         int
	StopOnNoProgress bool
}

// queryFunc builds the geocode query for row i. An empty query skips the row.
type queryFunc func(t *table.Table, i int, cols table.Columns) string

// RetrySameKey re-geocodes missing rows with the same address string used by
// the bulk pass, reloading and persisting the table on every pass.
func (r *Runner) RetrySameKey(ctx context.Context, opts RetryOptions) (*model.RetryReport, error) {
	return r.retry(ctx, opts, model.StageSameKeyRetried, []string{r.columns(opts).Address}, sameKeyQuery)
}

// RetryExpandedKey re-geocodes missing rows with "street, city_state[, zip]".
func (r *Runner) RetryExpandedKey(ctx context.Context, opts RetryOptions) (*model.RetryReport, error) {
	cols := r.columns(opts)
	return r.retry(ctx, opts, model.StageExpandedKeyRetried, []string{cols.Address, cols.CityState}, expandedKeyQuery)
}

func (r *Runner) columns(opts RetryOptions) table.Columns {
	cols := r.cols
	if opts.AddressColumn != "" {
		cols.Address = opts.AddressColumn
	}
	return cols
}

func sameKeyQuery(t *table.Table, i int, cols table.Columns) string {
	addr := t.Get(i, cols.Address)
	if table.IsMissing(addr) {
		return ""
	}
	return addr
}

func expandedKeyQuery(t *table.Table, i int, cols table.Columns) string {
	if table.IsMissing(t.Get(i, cols.Address)) && table.IsMissing(t.Get(i, cols.CityState)) {
		return ""
	}
	return t.ExpandedQuery(i, cols)
}

func (r *Runner) retry(ctx context.Context, opts RetryOptions, stage model.Stage, required []string, query queryFunc) (*model.RetryReport, error) {
	if err := r.requireResolver(); err != nil {
		return nil, err
	}
	if opts.MaxLoops < 1 {
		return nil, eris.Errorf("%s: max_loops must be at least 1, got %d", stage, opts.MaxLoops)
	}
	started := r.now()
	cols := r.columns(opts)
	log := zap.L().With(zap.String("stage", string(stage)), zap.String("table", opts.Path))

	report := &model.RetryReport{MaxLoops: opts.MaxLoops}
	for loop := 1; loop <= opts.MaxLoops; loop++ {
		t, err := table.Load(opts.Path)
		if err != nil {
			return report, eris.Wrapf(err, "%s: load table", stage)
		}
		if err := t.Require(required...); err != nil {
			return report, eris.Wrapf(err, "%s: table", stage)
		}
		t.EnsureColumn(cols.Latitude)
		t.EnsureColumn(cols.Longitude)

		missing := t.MissingRows(cols)
		if len(missing) == 0 {
			report.Converged = true
			report.Remaining = 0
			break
		}

		fixed := 0
		for _, i := range missing {
			if err := ctx.Err(); err != nil {
				if fixed > 0 {
					t.NormalizeMissing(cols)
					if saveErr := table.Save(opts.Path, t); saveErr != nil {
						log.Warn("retry: save on cancel failed", zap.Error(saveErr))
					}
				}
				report.Fixed += fixed
				return report, eris.Wrapf(err, "%s: cancelled", stage)
			}
			q := query(t, i, cols)
			if q == "" {
				continue
			}
			res := r.resolver.Resolve(ctx, q)
			if !res.Matched {
				continue
			}
			t.SetCoordinate(i, cols, res.Latitude, res.Longitude)
			fixed++
		}

		t.NormalizeMissing(cols)
		if err := table.Save(opts.Path, t); err != nil {
			return report, eris.Wrapf(err, "%s: save table", stage)
		}

		report.Loops = loop
		report.Fixed += fixed
		report.Remaining = len(missing) - fixed
		report.Passes = append(report.Passes, model.PassReport{Loop: loop, Missing: len(missing), Fixed: fixed})
		log.Info("retry: pass complete",
			zap.Int("loop", loop),
			zap.Int("missing", len(missing)),
			zap.Int("fixed", fixed),
		)
		if r.afterPass != nil {
			r.afterPass(loop)
		}

		if report.Remaining == 0 {
			report.Converged = true
			break
		}
		if opts.StopOnNoProgress && fixed == 0 {
			break
		}
	}

	log.Info("retry: "+report.Summary(),
		zap.Int("loops", report.Loops),
		zap.Int("remaining", report.Remaining),
	)

	if err := r.record(ctx, opts.Path, stage, started, report.Loops, report.Fixed, report.Remaining); err != nil {
		return report, err
	}
	return report, nil
}
