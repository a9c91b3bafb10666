package model

import "time"

// RunStatus tracks a pipeline run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records the knobs a pipeline run was started with, so stored
// outputs stay interpretable after config changes.
type RunParams struct {
	BaseYear       int      `json:"base_year"`
	HorizonYear    int      `json:"horizon_year"`
	NationalTarget int64    `json:"national_target"`
	Method         string   `json:"method"`
	Profiles       []string `json:"profiles"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	Counties        int      `json:"counties"`
	Scenarios       int      `json:"scenarios"`
	FailedScenarios []string `json:"failed_scenarios,omitempty"`
	ExcludedRows    int      `json:"excluded_rows"`
	Error           string   `json:"error,omitempty"`
}

// Run is one recorded execution of the projection pipeline.
type Run struct {
	ID        string     `json:"id"`
	Params    RunParams  `json:"params"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
