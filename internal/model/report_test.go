package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryReport_Summary(t *testing.T) {
	tests := []struct {
		name   string
		report RetryReport
		want   string
	}{
		{
			name:   "converged",
			report: RetryReport{MaxLoops: 10, Loops: 2, Converged: true},
			want:   "no missing coordinates left, all done after 2 loops",
		},
		{
			name:   "nothing to do",
			report: RetryReport{MaxLoops: 10, Loops: 0, Converged: true},
			want:   "no missing coordinates left, all done after 0 loops",
		},
		{
			name:   "budget exhausted",
			report: RetryReport{MaxLoops: 2, Loops: 2, Remaining: 1},
			want:   "stopped after max_loops=2, 1 rows still missing",
		},
		{
			name:   "no progress",
			report: RetryReport{MaxLoops: 10, Loops: 1, Remaining: 3},
			want:   "stopped after 1 loops without progress, 3 rows still missing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.Summary())
		})
	}
}
