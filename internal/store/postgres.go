package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/terrashift/climate-cli/internal/db"
	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, params, status, result, created_at, updated_at FROM runs WHERE id = $1`,
	"latest_run":        `SELECT id FROM runs WHERE status = $1 ORDER BY updated_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS projections (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	county_fips TEXT NOT NULL,
	scenario    TEXT NOT NULL,
	population  BIGINT NOT NULL,
	pct_change  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, county_fips, scenario)
);

CREATE TABLE IF NOT EXISTS projected_rows (
	run_id                TEXT NOT NULL REFERENCES runs(id),
	county_fips           TEXT NOT NULL,
	scenario              TEXT NOT NULL,
	year                  INTEGER NOT NULL,
	indicators            JSONB NOT NULL,
	unemployment_rate     DOUBLE PRECISION,
	student_teacher_ratio DOUBLE PRECISION,
	available_housing     DOUBLE PRECISION NOT NULL,
	excluded_reason       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, county_fips, scenario)
);

CREATE TABLE IF NOT EXISTS indices (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	county_fips     TEXT NOT NULL,
	scenario        TEXT NOT NULL,
	category_scores JSONB NOT NULL,
	composites      JSONB NOT NULL,
	PRIMARY KEY (run_id, county_fips, scenario)
);

CREATE TABLE IF NOT EXISTS rankings (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	county_fips TEXT NOT NULL,
	scenario    TEXT NOT NULL,
	index_name  TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	rank        INTEGER NOT NULL,
	PRIMARY KEY (run_id, county_fips, scenario, index_name)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_projections_run ON projections(run_id, scenario);
CREATE INDEX IF NOT EXISTS idx_projected_rows_run ON projected_rows(run_id, scenario);
CREATE INDEX IF NOT EXISTS idx_rankings_run ON rankings(run_id, index_name, rank);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, paramsJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	status := model.RunStatusComplete
	if result != nil && result.Error != "" {
		status = model.RunStatusFailed
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var paramsJSON []byte
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, params, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &paramsJSON, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	if resultNull != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var paramsJSON []byte
		var resultNull *[]byte

		if err := rows.Scan(&r.ID, &paramsJSON, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal params")
		}
		if resultNull != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(*resultNull, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LatestCompleteRunID(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM runs WHERE status = $1 ORDER BY updated_at DESC LIMIT 1`,
		string(model.RunStatusComplete),
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", eris.New("no complete runs")
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: latest run")
	}
	return id, nil
}

// SaveProjections bulk-loads the projection table with COPY. A rerun of the
// same run ID replaces any rows written by a previous attempt.
func (s *PostgresStore) SaveProjections(ctx context.Context, runID string, projections []model.CountyProjection) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM projections WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear projections %s", runID)
	}

	rows := make([][]any, 0, len(projections))
	for _, p := range projections {
		rows = append(rows, []any{runID, p.FIPS, string(p.Scenario), p.Population, p.PctChange})
	}
	_, err := db.CopyFrom(ctx, s.pool, "projections",
		[]string{"run_id", "county_fips", "scenario", "population", "pct_change"}, rows)
	return err
}

func (s *PostgresStore) ListProjections(ctx context.Context, runID string, scenario model.Scenario) ([]model.CountyProjection, error) {
	query := `SELECT county_fips, scenario, population, pct_change FROM projections WHERE run_id = $1`
	args := []any{runID}
	if scenario != "" {
		query += ` AND scenario = $2`
		args = append(args, string(scenario))
	}
	query += ` ORDER BY county_fips, scenario`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projections")
	}
	defer rows.Close()

	var out []model.CountyProjection
	for rows.Next() {
		var p model.CountyProjection
		var sc string
		if err := rows.Scan(&p.FIPS, &sc, &p.Population, &p.PctChange); err != nil {
			return nil, eris.Wrap(err, "postgres: scan projection")
		}
		p.Scenario = model.Scenario(sc)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list projections iterate")
}

func (s *PostgresStore) SaveProjectedRows(ctx context.Context, runID string, projected []model.ProjectedRow) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM projected_rows WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear projected rows %s", runID)
	}

	rows := make([][]any, 0, len(projected))
	for _, row := range projected {
		valuesJSON, err := json.Marshal(row.Values)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal indicators %s/%s", row.FIPS, row.Scenario)
		}
		rows = append(rows, []any{
			runID, row.FIPS, string(row.Scenario), row.Year, valuesJSON,
			ratioArg(row.UnemploymentRate), ratioArg(row.StudentTeacherRatio),
			row.AvailableHousing, row.ExcludedReason,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "projected_rows",
		[]string{"run_id", "county_fips", "scenario", "year", "indicators",
			"unemployment_rate", "student_teacher_ratio", "available_housing", "excluded_reason"}, rows)
	return err
}

func (s *PostgresStore) ListProjectedRows(ctx context.Context, runID string, scenario model.Scenario) ([]model.ProjectedRow, error) {
	query := `SELECT county_fips, scenario, year, indicators, unemployment_rate, student_teacher_ratio, available_housing, excluded_reason
		FROM projected_rows WHERE run_id = $1`
	args := []any{runID}
	if scenario != "" {
		query += ` AND scenario = $2`
		args = append(args, string(scenario))
	}
	query += ` ORDER BY county_fips, scenario`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projected rows")
	}
	defer rows.Close()

	var out []model.ProjectedRow
	for rows.Next() {
		var row model.ProjectedRow
		var sc string
		var valuesJSON []byte
		var unemployment, str *float64
		if err := rows.Scan(&row.FIPS, &sc, &row.Year, &valuesJSON, &unemployment, &str, &row.AvailableHousing, &row.ExcludedReason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan projected row")
		}
		row.Scenario = model.Scenario(sc)
		if err := json.Unmarshal(valuesJSON, &row.Values); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal indicators")
		}
		row.UnemploymentRate = ratioFromPtr(unemployment)
		row.StudentTeacherRatio = ratioFromPtr(str)
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list projected rows iterate")
}

func (s *PostgresStore) SaveIndices(ctx context.Context, runID string, results []index.Result) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM indices WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear indices %s", runID)
	}

	rows := make([][]any, 0, len(results))
	for _, r := range results {
		scores, err := json.Marshal(r.CategoryScores)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal category scores")
		}
		composites, err := json.Marshal(r.Indices)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal composites")
		}
		rows = append(rows, []any{runID, r.FIPS, string(r.Scenario), scores, composites})
	}
	_, err := db.CopyFrom(ctx, s.pool, "indices",
		[]string{"run_id", "county_fips", "scenario", "category_scores", "composites"}, rows)
	return err
}

func (s *PostgresStore) ListIndices(ctx context.Context, runID string, scenario model.Scenario) ([]index.Result, error) {
	query := `SELECT county_fips, scenario, category_scores, composites FROM indices WHERE run_id = $1`
	args := []any{runID}
	if scenario != "" {
		query += ` AND scenario = $2`
		args = append(args, string(scenario))
	}
	query += ` ORDER BY county_fips, scenario`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list indices")
	}
	defer rows.Close()

	var out []index.Result
	for rows.Next() {
		var r index.Result
		var sc string
		var scores, composites []byte
		if err := rows.Scan(&r.FIPS, &sc, &scores, &composites); err != nil {
			return nil, eris.Wrap(err, "postgres: scan index")
		}
		r.Scenario = model.Scenario(sc)
		if err := json.Unmarshal(scores, &r.CategoryScores); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal category scores")
		}
		if err := json.Unmarshal(composites, &r.Indices); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal composites")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list indices iterate")
}

func (s *PostgresStore) SaveRankings(ctx context.Context, runID string, rankings []index.Ranking) error {
	rows := make([][]any, 0, len(rankings))
	for _, r := range rankings {
		rows = append(rows, []any{runID, r.FIPS, r.Scenario, r.Index, r.Value, r.Rank})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "rankings",
		Columns:      []string{"run_id", "county_fips", "scenario", "index_name", "value", "rank"},
		ConflictKeys: []string{"run_id", "county_fips", "scenario", "index_name"},
	}, rows)
	return err
}

func (s *PostgresStore) ListRankings(ctx context.Context, runID string, indexName string) ([]index.Ranking, error) {
	query := `SELECT county_fips, scenario, index_name, value, rank FROM rankings WHERE run_id = $1`
	args := []any{runID}
	if indexName != "" {
		query += ` AND index_name = $2`
		args = append(args, indexName)
	}
	query += ` ORDER BY scenario, index_name, rank, county_fips`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rankings")
	}
	defer rows.Close()

	var out []index.Ranking
	for rows.Next() {
		var r index.Ranking
		if err := rows.Scan(&r.FIPS, &r.Scenario, &r.Index, &r.Value, &r.Rank); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ranking")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rankings iterate")
}

func ratioFromPtr(v *float64) model.Ratio {
	if v != nil {
		return model.DefinedRatio(*v)
	}
	return model.UndefinedRatio()
}
