package model

import "time"

// Stage is a step of the geocoding pipeline. Stages are advanced by an
// operator, one command invocation at a time.
type Stage string

const (
	StageEmpty              Stage = "empty"
	StageBulkResolved       Stage = "bulk_resolved"
	StageSameKeyRetried     Stage = "same_key_retried"
	StageExpandedKeyRetried Stage = "expanded_key_retried"
	StageGapsExported       Stage = "gaps_exported"
	StageMerged             Stage = "merged"
)

// stageOrder is the nominal order of the pipeline.
var stageOrder = []Stage{
	StageEmpty,
	StageBulkResolved,
	StageSameKeyRetried,
	StageExpandedKeyRetried,
	StageGapsExported,
	StageMerged,
}

// Next returns the stage that normally follows s, or "" for the final stage.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return ""
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// StageRun records one completed invocation of a pipeline stage.
type StageRun struct {
	ID         string    `json:"id" yaml:"id"`
	Table      string    `json:"table" yaml:"table"`
	Stage      Stage     `json:"stage" yaml:"stage"`
	Loops      int       `json:"loops" yaml:"loops"`
	Resolved   int       `json:"resolved" yaml:"resolved"`
	Remaining  int       `json:"remaining" yaml:"remaining"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// CurrentStage returns the stage of the most recent run, or StageEmpty.
// runs must be ordered oldest first.
func CurrentStage(runs []StageRun) Stage {
	if len(runs) == 0 {
		return StageEmpty
	}
	return runs[len(runs)-1].Stage
}
