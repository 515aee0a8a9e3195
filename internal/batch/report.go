package batch

import (
	"time"

	"pressline/internal/pipeline"
)

// Report summarizes one batch run. Results hold one entry per input record,
// in input order, regardless of completion order.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Results   []pipeline.Result
}

// Succeeded counts topics that published during this run.
func (r *Report) Succeeded() int { return r.countStatus(pipeline.StatusSuccess) }

// Skipped counts topics already published before this run.
func (r *Report) Skipped() int { return r.countStatus(pipeline.StatusSkipped) }

// Failed counts topics that did not publish.
func (r *Report) Failed() int { return r.countStatus(pipeline.StatusFailed) }

// Failures returns the failed results, in input order.
func (r *Report) Failures() []pipeline.Result {
	var failed []pipeline.Result
	for _, res := range r.Results {
		if res.Status == pipeline.StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

func (r *Report) countStatus(status pipeline.Status) int {
	count := 0
	for _, res := range r.Results {
		if res.Status == status {
			count++
		}
	}
	return count
}
