// Package store persists pipeline runs and their output tables behind a
// backend-agnostic interface with SQLite and Postgres implementations.
package store

import (
	"context"

	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the projection pipeline.
// Output tables are keyed by run so multiple parameterizations can coexist.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	LatestCompleteRunID(ctx context.Context) (string, error)

	// Population projections
	SaveProjections(ctx context.Context, runID string, projections []model.CountyProjection) error
	ListProjections(ctx context.Context, runID string, scenario model.Scenario) ([]model.CountyProjection, error)

	// Combined projected indicators
	SaveProjectedRows(ctx context.Context, runID string, rows []model.ProjectedRow) error
	ListProjectedRows(ctx context.Context, runID string, scenario model.Scenario) ([]model.ProjectedRow, error)

	// Composite indices and rankings
	SaveIndices(ctx context.Context, runID string, results []index.Result) error
	ListIndices(ctx context.Context, runID string, scenario model.Scenario) ([]index.Result, error)
	SaveRankings(ctx context.Context, runID string, rankings []index.Ranking) error
	ListRankings(ctx context.Context, runID string, indexName string) ([]index.Ranking, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
