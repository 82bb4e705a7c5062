package core

import "time"

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one pipeline execution.
type Run struct {
	ID          string
	Source      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// BatchRun records what happened to one chunk of the source within a run.
type BatchRun struct {
	RunID           string
	Batch           int
	RowsRead        int
	RowsKept        int
	CustomersLoaded int64
	ProductsLoaded  int64
	SalesLoaded     int64
	ProcessedAt     time.Time
}
