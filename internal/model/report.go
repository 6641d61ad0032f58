// Package model defines the domain types shared across the geocoding pipeline.
package model

import "fmt"

// Coordinate is a resolved latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// BulkReport summarizes a first-pass geocode over a whole table.
type BulkReport struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// PassReport summarizes one pass of a retry loop.
type PassReport struct {
	Loop    int `json:"loop"`
	Missing int `json:"missing"`
	Fixed   int `json:"fixed"`
}

// RetryReport summarizes a bounded retry loop. Exhausting the loop budget is
// a partial success, not an error.
type RetryReport struct {
	MaxLoops  int          `json:"max_loops"`
	Loops     int          `json:"loops"`
	Converged bool         `json:"converged"`
	Remaining int          `json:"remaining"`
	Fixed     int          `json:"fixed"`
	Passes    []PassReport `json:"passes,omitempty"`
}

// Summary renders the operator-facing outcome line.
func (r RetryReport) Summary() string {
	if r.Converged {
		return fmt.Sprintf("no missing coordinates left, all done after %d loops", r.Loops)
	}
	if r.Loops < r.MaxLoops {
		return fmt.Sprintf("stopped after %d loops without progress, %d rows still missing", r.Loops, r.Remaining)
	}
	return fmt.Sprintf("stopped after max_loops=%d, %d rows still missing", r.MaxLoops, r.Remaining)
}

// MergeReport summarizes a manual-correction merge.
type MergeReport struct {
	Rows    int `json:"rows"`
	Matched int `json:"matched"`
	Updated int `json:"updated"`
}
