package model

import (
	"strings"
	"time"
)

// Record is one normalized listing produced by an adapter.
type Record struct {
	Title   string `json:"title"`
	Code    string `json:"code"`
	EndDate string `json:"end_date"` // free text, not validated
	Link    string `json:"link"`

	// Score is attached by the keyword filter.
	Score int `json:"score"`

	// Placeholder marks the synthetic single row a target reports when it
	// produced nothing usable.
	Placeholder bool `json:"placeholder,omitempty"`
}

// IsEmpty reports whether every informational field is blank.
func (r Record) IsEmpty() bool {
	return strings.TrimSpace(r.Title) == "" &&
		strings.TrimSpace(r.Code) == "" &&
		strings.TrimSpace(r.EndDate) == "" &&
		strings.TrimSpace(r.Link) == ""
}

// JobOutcome is the final result of running one target through the runner.
type JobOutcome struct {
	Target    Target        `json:"target"`
	Records   []Record      `json:"records"`
	Success   bool          `json:"success"`
	Elapsed   time.Duration `json:"elapsed"`
	Attempts  int           `json:"attempts"`
	Err       string        `json:"error,omitempty"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// PlaceholderOutcome builds the single-empty-record outcome used for
// "ran, nothing usable" (success=true) and "ran, failed" (success=false).
func PlaceholderOutcome(t Target, success bool) JobOutcome {
	return JobOutcome{
		Target:  t,
		Records: []Record{{Placeholder: true}},
		Success: success,
	}
}

// IsPlaceholder reports whether the outcome is a lone empty record.
func (o JobOutcome) IsPlaceholder() bool {
	return len(o.Records) == 1 && o.Records[0].IsEmpty()
}

// ElapsedSeconds returns the elapsed time as fractional seconds.
func (o JobOutcome) ElapsedSeconds() float64 {
	return o.Elapsed.Seconds()
}
