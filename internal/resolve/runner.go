// Package resolve implements the stages of the geocoding pipeline: the bulk
// first pass, the bounded retry loops, the manual-gap export and the merge
// of human corrections. Every stage persists its output before returning.
package resolve

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/table"
	"github.com/mhc-map/mhc-geo/pkg/geocode"
)

// StageLog records completed stage runs.
type StageLog interface {
	RecordStage(ctx context.Context, run model.StageRun) error
}

// Runner executes pipeline stages against a geocode resolver.
type Runner struct {
	resolver        geocode.Resolver
	stages          StageLog
	cols            table.Columns
	checkpointEvery int
	now             func() time.Time
	// afterPass runs once a retry pass has been saved.
	afterPass func(loop int)
}

// Option configures a Runner.
type Option func(*Runner)

// WithStageLog records a StageRun after each stage persists its output.
func WithStageLog(l StageLog) Option {
	return func(r *Runner) {
		r.stages = l
	}
}

// WithColumns overrides the default column names.
func WithColumns(c table.Columns) Option {
	return func(r *Runner) {
		r.cols = c
	}
}

// WithCheckpointEvery persists the bulk output every n rows. Values below 1
// are treated as 1.
func WithCheckpointEvery(n int) Option {
	return func(r *Runner) {
		r.checkpointEvery = n
	}
}

// NewRunner creates a Runner. resolver may be nil for stages that never
// geocode (export and merge).
func NewRunner(resolver geocode.Resolver, opts ...Option) *Runner {
	r := &Runner{
		resolver:        resolver,
		cols:            table.DefaultColumns(),
		checkpointEvery: 1,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.checkpointEvery < 1 {
		r.checkpointEvery = 1
	}
	return r
}

// Columns returns the column names the runner operates on.
func (r *Runner) Columns() table.Columns {
	return r.cols
}

// TableKey returns the identifier stage history is recorded under for path.
func TableKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func (r *Runner) record(ctx context.Context, path string, stage model.Stage, started time.Time, loops, resolved, remaining int) error {
	if r.stages == nil {
		return nil
	}
	run := model.StageRun{
		Table:      TableKey(path),
		Stage:      stage,
		Loops:      loops,
		Resolved:   resolved,
		Remaining:  remaining,
		StartedAt:  started.UTC(),
		FinishedAt: r.now().UTC(),
	}
	if err := r.stages.RecordStage(ctx, run); err != nil {
		return eris.Wrapf(err, "resolve: record %s", stage)
	}
	zap.L().Debug("resolve: stage recorded",
		zap.String("table", run.Table),
		zap.String("stage", string(stage)),
	)
	return nil
}

func (r *Runner) requireResolver() error {
	if r.resolver == nil {
		return eris.New("resolve: no geocode resolver configured")
	}
	return nil
}
