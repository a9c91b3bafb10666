package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.RunParams{BaseYear: 2023, HorizonYear: 2065})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, params, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_DecodesResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	result := []byte(`{"counties":3108,"scenarios":6,"excluded_rows":4}`)
	rows := pgxmock.NewRows([]string{"id", "params", "status", "result", "created_at", "updated_at"}).
		AddRow("run-1", []byte(`{"base_year":2023,"horizon_year":2065}`), "complete", &result, now, now)

	mock.ExpectQuery(`SELECT id, params, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2065, run.Params.HorizonYear)
	require.NotNil(t, run.Result)
	assert.Equal(t, 3108, run.Result.Counties)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("running", pgxmock.AnyArg(), "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-id", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_FailedResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// A result carrying an error marks the run failed, not complete.
	mock.ExpectExec(`UPDATE runs SET result = \$1, status = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs(pgxmock.AnyArg(), "failed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.RunResult{Error: "share table invalid"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestCompleteRunID_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM runs WHERE status = \$1`).
		WithArgs("complete").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestCompleteRunID(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no complete runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProjections_CopiesRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM projections WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"projections"},
		[]string{"run_id", "county_fips", "scenario", "population", "pct_change"}).
		WillReturnResult(2)

	projections := []model.CountyProjection{
		{FIPS: "01001", Scenario: model.ScenarioS3, Population: 61203, PctChange: 4.7},
		{FIPS: "06037", Scenario: model.ScenarioS3, Population: 9721034, PctChange: -2.1},
	}
	err := s.SaveProjections(context.Background(), "run-1", projections)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProjectedRows_NullableRatios(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM projected_rows WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"projected_rows"},
		[]string{"run_id", "county_fips", "scenario", "year", "indicators",
			"unemployment_rate", "student_teacher_ratio", "available_housing", "excluded_reason"}).
		WillReturnResult(1)

	rows := []model.ProjectedRow{{
		FIPS:                "01001",
		Scenario:            model.ScenarioS5b,
		Year:                2065,
		Values:              map[model.Indicator]float64{model.IndLaborForce: 28500},
		UnemploymentRate:    model.DefinedRatio(4.2),
		StudentTeacherRatio: model.UndefinedRatio(),
		AvailableHousing:    -118,
	}}
	err := s.SaveProjectedRows(context.Background(), "run-1", rows)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRankings_Upserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"run_id", "county_fips", "scenario", "index_name", "value", "rank"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_rankings"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	rankings := []index.Ranking{
		{FIPS: "06037", Scenario: string(model.ScenarioS3), Index: "balanced", Value: 0.61, Rank: 1},
		{FIPS: "01001", Scenario: string(model.ScenarioS3), Index: "balanced", Value: 0.52, Rank: 2},
	}
	err := s.SaveRankings(context.Background(), "run-1", rankings)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRankings_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"county_fips", "scenario", "index_name", "value", "rank"}).
		AddRow("06037", "S3", "balanced", 0.61, 1).
		AddRow("01001", "S3", "balanced", 0.52, 2)

	mock.ExpectQuery(`SELECT county_fips, scenario, index_name, value, rank FROM rankings WHERE run_id = \$1 AND index_name = \$2`).
		WithArgs("run-1", "balanced").
		WillReturnRows(rows)

	got, err := s.ListRankings(context.Background(), "run-1", "balanced")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "06037", got[0].FIPS)
	assert.Equal(t, 1, got[0].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}
