package model

import "time"

// RunStatus represents the current state of a batch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one persisted batch execution.
type Run struct {
	ID         string         `json:"id"`
	Targets    []string       `json:"targets"`
	Status     RunStatus      `json:"status"`
	OutputPath string         `json:"output_path,omitempty"`
	Error      string         `json:"error,omitempty"`
	Results    []TargetResult `json:"results,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TargetResult is the history row for one target within a run.
type TargetResult struct {
	Key            string    `json:"key"`
	Success        bool      `json:"success"`
	Records        int       `json:"records"`
	Attempts       int       `json:"attempts"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Error          string    `json:"error,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ResultFromOutcome summarizes an outcome for the history store. Placeholder
// rows do not count as records.
func ResultFromOutcome(o JobOutcome) TargetResult {
	n := len(o.Records)
	if o.IsPlaceholder() {
		n = 0
	}
	return TargetResult{
		Key:            o.Target.Key,
		Success:        o.Success,
		Records:        n,
		Attempts:       o.Attempts,
		ElapsedSeconds: o.ElapsedSeconds(),
		Error:          o.Err,
		RecordedAt:     time.Now().UTC(),
	}
}
