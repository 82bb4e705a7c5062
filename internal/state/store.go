// Package state records pipeline run history in a local SQLite database.
// It tracks runs and the per-batch row counts of each run.
package state

import (
	"context"

	"github.com/leapstack-labs/salesload/pkg/core"
)

// Type aliases for the run types defined in pkg/core.
type (
	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// Run is an alias for core.Run.
	Run = core.Run

	// BatchRun is an alias for core.BatchRun.
	BatchRun = core.BatchRun
)

// Re-export status constants from core.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusCompleted = core.RunStatusCompleted
	RunStatusFailed    = core.RunStatusFailed
)

// Store is the run-history store used by the pipeline driver.
type Store interface {
	CreateRun(ctx context.Context, source string) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	RecordBatch(ctx context.Context, batch *BatchRun) error
	ListBatches(ctx context.Context, runID string) ([]*BatchRun, error)
	Close() error
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
