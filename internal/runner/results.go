package runner

import (
	"time"

	"martflow/internal/check"
	"martflow/internal/project"
)

// Status is the outcome of one model execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CheckStatus is the outcome of one check execution.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarned  CheckStatus = "warned"
	CheckFailed  CheckStatus = "failed"
	CheckErrored CheckStatus = "errored"
	CheckSkipped CheckStatus = "skipped"
)

// ModelResult records the outcome of one model.
type ModelResult struct {
	Name         string
	Status       Status
	Materialized project.Materialization
	Duration     time.Duration
	SQL          string
	Err          error
}

// CheckResult records the outcome of one check.
type CheckResult struct {
	Check    check.Check
	Status   CheckStatus
	Failures int64
	Duration time.Duration
	Err      error
}

// RunResult aggregates a whole invocation.
type RunResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Models    []ModelResult
	Checks    []CheckResult
}

// Failed reports whether any model failed or any error-severity check failed.
func (r *RunResult) Failed() bool {
	for _, m := range r.Models {
		if m.Status == StatusFailed {
			return true
		}
	}
	for _, c := range r.Checks {
		if c.Status == CheckFailed || c.Status == CheckErrored {
			return true
		}
	}
	return false
}

// Counts returns per-status model totals.
func (r *RunResult) Counts() (success, failed, skipped int) {
	for _, m := range r.Models {
		switch m.Status {
		case StatusSuccess:
			success++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return success, failed, skipped
}

// CheckCounts returns per-status check totals.
func (r *RunResult) CheckCounts() (passed, warned, failed int) {
	for _, c := range r.Checks {
		switch c.Status {
		case CheckPassed:
			passed++
		case CheckWarned:
			warned++
		case CheckFailed, CheckErrored:
			failed++
		}
	}
	return passed, warned, failed
}
