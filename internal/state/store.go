// Package state provides run history tracking using SQLite. It records
// pipeline runs and their per-node outcomes so past executions can be
// inspected from the CLI.
package state

import "time"

// RunStatus is the lifecycle status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID          string
	Pipeline    string
	Environment string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// NodeRunStatus is the outcome of one node within a run.
type NodeRunStatus string

const (
	NodeRunStatusRunning NodeRunStatus = "running"
	NodeRunStatusSuccess NodeRunStatus = "success"
	NodeRunStatusFailed  NodeRunStatus = "failed"
	NodeRunStatusSkipped NodeRunStatus = "skipped"
)

// NodeRun is the record of one node execution within a run.
type NodeRun struct {
	ID          string
	RunID       string
	NodeName    string
	Status      NodeRunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	RowsOut     int64
	Error       string
}

// Store records pipeline runs and node outcomes.
type Store interface {
	// CreateRun starts a new run record in the running state.
	CreateRun(pipeline, env string) (*Run, error)

	// CompleteRun finishes a run with the given status and optional
	// error message.
	CompleteRun(id string, status RunStatus, errMsg string) error

	// GetRun retrieves a run by ID.
	GetRun(id string) (*Run, error)

	// GetLatestRun retrieves the most recent run, or nil when none exist.
	GetLatestRun() (*Run, error)

	// ListRuns retrieves the most recent runs, newest first, up to limit.
	ListRuns(limit int) ([]*Run, error)

	// StartNodeRun records the start of one node within a run.
	StartNodeRun(runID, nodeName string) (*NodeRun, error)

	// CompleteNodeRun finishes a node record.
	CompleteNodeRun(id string, status NodeRunStatus, rowsOut int64, errMsg string) error

	// ListNodeRuns retrieves the node records of a run in start order.
	ListNodeRuns(runID string) ([]*NodeRun, error)

	// Close releases the store's resources.
	Close() error
}
