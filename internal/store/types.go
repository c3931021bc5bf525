package store

import "time"

// #region run-status
// RunStatus is the lifecycle state of a generation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// #endregion run-status

// #region run-record
// RunRecord is one generation run in the ledger.
type RunRecord struct {
	RunID      string
	Split      string
	Seed       uint64
	Templates  []string // template classes requested
	ConfigJSON string
	Status     RunStatus
	Questions  int
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Error      string
}

// #endregion run-record

// #region run-file
// RunFile is one dataset file written by a run.
type RunFile struct {
	RunID     string
	Class     string
	Path      string
	Questions int
	Failed    bool   // structural error stopped the file
	Error     string // set when Failed
}

// #endregion run-file
