// Package store persists batch run history.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store records runs and their per-target results.
type Store interface {
	CreateRun(ctx context.Context, targets []string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, outputPath, errMsg string) error
	AddResults(ctx context.Context, runID string, results []model.TargetResult) error
	// GetRun returns the run with its results.
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// ListRuns returns runs newest first, without results.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
