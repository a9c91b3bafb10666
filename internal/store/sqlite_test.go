package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRunParams() model.RunParams {
	return model.RunParams{
		BaseYear:       2023,
		HorizonYear:    2065,
		NationalTarget: 366207000,
		Method:         "minmax",
		Profiles:       []string{"balanced", "family"},
	}
}

// --- Runs ---

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Equal(t, testRunParams(), got.Params)
	assert.Nil(t, got.Result)

	result := &model.RunResult{Counties: 3108, Scenarios: 6, ExcludedRows: 12}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3108, got.Result.Counties)
	assert.Equal(t, 12, got.Result.ExcludedRows)
}

func TestSQLite_CompleteRunWithErrorMarksFailed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)

	result := &model.RunResult{Error: "shares do not sum to 100"}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing-id", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_ListRuns_FilterAndLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusFailed))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a.ID, failed[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_LatestCompleteRunID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.LatestCompleteRunID(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no complete runs")

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, &model.RunResult{Counties: 1}))

	id, err := st.LatestCompleteRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, id)
}

// --- Projections ---

func TestSQLite_ProjectionsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)

	projections := []model.CountyProjection{
		{FIPS: "01001", Scenario: model.ScenarioS3, Population: 61203, PctChange: 4.7},
		{FIPS: "06037", Scenario: model.ScenarioS3, Population: 9721034, PctChange: -2.1},
		{FIPS: "06037", Scenario: model.ScenarioActual, Population: 9825000, PctChange: 0},
	}
	require.NoError(t, st.SaveProjections(ctx, run.ID, projections))

	all, err := st.ListProjections(ctx, run.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	s3, err := st.ListProjections(ctx, run.ID, model.ScenarioS3)
	require.NoError(t, err)
	require.Len(t, s3, 2)
	// Ordered by FIPS.
	assert.Equal(t, "01001", s3[0].FIPS)
	assert.Equal(t, int64(61203), s3[0].Population)
	assert.InDelta(t, 4.7, s3[0].PctChange, 1e-9)
}

func TestSQLite_SaveProjections_ReplacesOnRerun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)

	first := []model.CountyProjection{{FIPS: "01001", Scenario: model.ScenarioS1, Population: 100, PctChange: 1}}
	require.NoError(t, st.SaveProjections(ctx, run.ID, first))

	second := []model.CountyProjection{{FIPS: "01001", Scenario: model.ScenarioS1, Population: 200, PctChange: 2}}
	require.NoError(t, st.SaveProjections(ctx, run.ID, second))

	got, err := st.ListProjections(ctx, run.ID, model.ScenarioS1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].Population)
}

// --- Projected rows ---

func TestSQLite_ProjectedRowsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)

	rows := []model.ProjectedRow{
		{
			FIPS:     "01001",
			Scenario: model.ScenarioS5b,
			Year:     2065,
			Values: map[model.Indicator]float64{
				model.IndLaborForce:   28500,
				model.IndMedianIncome: 31250,
			},
			UnemploymentRate:    model.DefinedRatio(4.2),
			StudentTeacherRatio: model.UndefinedRatio(),
			AvailableHousing:    -118,
		},
		{
			FIPS:             "01003",
			Scenario:         model.ScenarioS5b,
			Year:             2065,
			Values:           map[model.Indicator]float64{model.IndLaborForce: 0},
			UnemploymentRate: model.UndefinedRatio(),
			AvailableHousing: 0,
			ExcludedReason:   "zero projected population",
		},
	}
	require.NoError(t, st.SaveProjectedRows(ctx, run.ID, rows))

	got, err := st.ListProjectedRows(ctx, run.ID, model.ScenarioS5b)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "01001", first.FIPS)
	assert.InDelta(t, 31250, first.Values[model.IndMedianIncome], 1e-9)
	v, ok := first.UnemploymentRate.Value()
	require.True(t, ok)
	assert.InDelta(t, 4.2, v, 1e-9)
	_, ok = first.StudentTeacherRatio.Value()
	assert.False(t, ok, "undefined ratio must survive a round trip as undefined")
	assert.InDelta(t, -118, first.AvailableHousing, 1e-9)

	assert.Equal(t, "zero projected population", got[1].ExcludedReason)
}

// --- Indices and rankings ---

func TestSQLite_IndicesRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)

	results := []index.Result{
		{
			FIPS:     "01001",
			Scenario: model.ScenarioS3,
			CategoryScores: map[model.Category]float64{
				model.CategoryEconomic: 0.71,
				model.CategoryHousing:  0.34,
			},
			Indices: map[string]float64{"balanced": 0.52, "family": 0.48},
		},
	}
	require.NoError(t, st.SaveIndices(ctx, run.ID, results))

	got, err := st.ListIndices(ctx, run.ID, model.ScenarioS3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.71, got[0].CategoryScores[model.CategoryEconomic], 1e-9)
	assert.InDelta(t, 0.52, got[0].Indices["balanced"], 1e-9)
}

func TestSQLite_RankingsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRunParams())
	require.NoError(t, err)

	rankings := []index.Ranking{
		{FIPS: "01001", Scenario: "S3", Index: "balanced", Value: 0.52, Rank: 2},
		{FIPS: "06037", Scenario: "S3", Index: "balanced", Value: 0.61, Rank: 1},
		{FIPS: "01001", Scenario: "S3", Index: "family", Value: 0.48, Rank: 1},
	}
	require.NoError(t, st.SaveRankings(ctx, run.ID, rankings))

	balanced, err := st.ListRankings(ctx, run.ID, "balanced")
	require.NoError(t, err)
	require.Len(t, balanced, 2)
	// Ordered by rank.
	assert.Equal(t, "06037", balanced[0].FIPS)
	assert.Equal(t, 1, balanced[0].Rank)

	all, err := st.ListRankings(ctx, run.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
