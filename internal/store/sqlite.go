package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS projections (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	county_fips TEXT NOT NULL,
	scenario    TEXT NOT NULL,
	population  INTEGER NOT NULL,
	pct_change  REAL NOT NULL,
	PRIMARY KEY (run_id, county_fips, scenario)
);

CREATE TABLE IF NOT EXISTS projected_rows (
	run_id                TEXT NOT NULL REFERENCES runs(id),
	county_fips           TEXT NOT NULL,
	scenario              TEXT NOT NULL,
	year                  INTEGER NOT NULL,
	indicators            TEXT NOT NULL,
	unemployment_rate     REAL,
	student_teacher_ratio REAL,
	available_housing     REAL NOT NULL,
	excluded_reason       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, county_fips, scenario)
);

CREATE TABLE IF NOT EXISTS indices (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	county_fips     TEXT NOT NULL,
	scenario        TEXT NOT NULL,
	category_scores TEXT NOT NULL,
	composites      TEXT NOT NULL,
	PRIMARY KEY (run_id, county_fips, scenario)
);

CREATE TABLE IF NOT EXISTS rankings (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	county_fips TEXT NOT NULL,
	scenario    TEXT NOT NULL,
	index_name  TEXT NOT NULL,
	value       REAL NOT NULL,
	rank        INTEGER NOT NULL,
	PRIMARY KEY (run_id, county_fips, scenario, index_name)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_projections_run ON projections(run_id, scenario);
CREATE INDEX IF NOT EXISTS idx_projected_rows_run ON projected_rows(run_id, scenario);
CREATE INDEX IF NOT EXISTS idx_rankings_run ON rankings(run_id, index_name, rank);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(paramsJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	status := model.RunStatusComplete
	if result != nil && result.Error != "" {
		status = model.RunStatusFailed
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, params, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LatestCompleteRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE status = ? ORDER BY updated_at DESC LIMIT 1`,
		string(model.RunStatusComplete),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", eris.New("no complete runs")
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: latest run")
	}
	return id, nil
}

func (s *SQLiteStore) SaveProjections(ctx context.Context, runID string, projections []model.CountyProjection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO projections (run_id, county_fips, scenario, population, pct_change) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare projections")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range projections {
		if _, err := stmt.ExecContext(ctx, runID, p.FIPS, string(p.Scenario), p.Population, p.PctChange); err != nil {
			return eris.Wrapf(err, "sqlite: insert projection %s/%s", p.FIPS, p.Scenario)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit projections")
}

func (s *SQLiteStore) ListProjections(ctx context.Context, runID string, scenario model.Scenario) ([]model.CountyProjection, error) {
	query := `SELECT county_fips, scenario, population, pct_change FROM projections WHERE run_id = ?`
	args := []any{runID}
	if scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, string(scenario))
	}
	query += ` ORDER BY county_fips, scenario`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projections")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CountyProjection
	for rows.Next() {
		var p model.CountyProjection
		var sc string
		if err := rows.Scan(&p.FIPS, &sc, &p.Population, &p.PctChange); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan projection")
		}
		p.Scenario = model.Scenario(sc)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list projections iterate")
}

func (s *SQLiteStore) SaveProjectedRows(ctx context.Context, runID string, projected []model.ProjectedRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO projected_rows
		 (run_id, county_fips, scenario, year, indicators, unemployment_rate, student_teacher_ratio, available_housing, excluded_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare projected rows")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range projected {
		valuesJSON, err := json.Marshal(row.Values)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal indicators %s/%s", row.FIPS, row.Scenario)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, row.FIPS, string(row.Scenario), row.Year, string(valuesJSON),
			ratioArg(row.UnemploymentRate), ratioArg(row.StudentTeacherRatio),
			row.AvailableHousing, row.ExcludedReason,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert projected row %s/%s", row.FIPS, row.Scenario)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit projected rows")
}

func (s *SQLiteStore) ListProjectedRows(ctx context.Context, runID string, scenario model.Scenario) ([]model.ProjectedRow, error) {
	query := `SELECT county_fips, scenario, year, indicators, unemployment_rate, student_teacher_ratio, available_housing, excluded_reason
		FROM projected_rows WHERE run_id = ?`
	args := []any{runID}
	if scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, string(scenario))
	}
	query += ` ORDER BY county_fips, scenario`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projected rows")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProjectedRow
	for rows.Next() {
		var row model.ProjectedRow
		var sc, valuesJSON string
		var unemployment, str sql.NullFloat64
		if err := rows.Scan(&row.FIPS, &sc, &row.Year, &valuesJSON, &unemployment, &str, &row.AvailableHousing, &row.ExcludedReason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan projected row")
		}
		row.Scenario = model.Scenario(sc)
		if err := json.Unmarshal([]byte(valuesJSON), &row.Values); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal indicators")
		}
		row.UnemploymentRate = ratioFromNull(unemployment)
		row.StudentTeacherRatio = ratioFromNull(str)
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list projected rows iterate")
}

func (s *SQLiteStore) SaveIndices(ctx context.Context, runID string, results []index.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO indices (run_id, county_fips, scenario, category_scores, composites) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare indices")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range results {
		scores, err := json.Marshal(r.CategoryScores)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal category scores")
		}
		composites, err := json.Marshal(r.Indices)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal composites")
		}
		if _, err := stmt.ExecContext(ctx, runID, r.FIPS, string(r.Scenario), string(scores), string(composites)); err != nil {
			return eris.Wrapf(err, "sqlite: insert index %s/%s", r.FIPS, r.Scenario)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit indices")
}

func (s *SQLiteStore) ListIndices(ctx context.Context, runID string, scenario model.Scenario) ([]index.Result, error) {
	query := `SELECT county_fips, scenario, category_scores, composites FROM indices WHERE run_id = ?`
	args := []any{runID}
	if scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, string(scenario))
	}
	query += ` ORDER BY county_fips, scenario`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list indices")
	}
	defer rows.Close() //nolint:errcheck

	var out []index.Result
	for rows.Next() {
		var r index.Result
		var sc, scores, composites string
		if err := rows.Scan(&r.FIPS, &sc, &scores, &composites); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan index")
		}
		r.Scenario = model.Scenario(sc)
		if err := json.Unmarshal([]byte(scores), &r.CategoryScores); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal category scores")
		}
		if err := json.Unmarshal([]byte(composites), &r.Indices); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal composites")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list indices iterate")
}

func (s *SQLiteStore) SaveRankings(ctx context.Context, runID string, rankings []index.Ranking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO rankings (run_id, county_fips, scenario, index_name, value, rank) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare rankings")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rankings {
		if _, err := stmt.ExecContext(ctx, runID, r.FIPS, r.Scenario, r.Index, r.Value, r.Rank); err != nil {
			return eris.Wrapf(err, "sqlite: insert ranking %s/%s/%s", r.FIPS, r.Scenario, r.Index)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit rankings")
}

func (s *SQLiteStore) ListRankings(ctx context.Context, runID string, indexName string) ([]index.Ranking, error) {
	query := `SELECT county_fips, scenario, index_name, value, rank FROM rankings WHERE run_id = ?`
	args := []any{runID}
	if indexName != "" {
		query += ` AND index_name = ?`
		args = append(args, indexName)
	}
	query += ` ORDER BY scenario, index_name, rank, county_fips`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rankings")
	}
	defer rows.Close() //nolint:errcheck

	var out []index.Ranking
	for rows.Next() {
		var r index.Ranking
		if err := rows.Scan(&r.FIPS, &r.Scenario, &r.Index, &r.Value, &r.Rank); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ranking")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rankings iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// ratioArg converts a Ratio to a nullable SQL argument. Undefined ratios
// are stored as NULL, never as a sentinel value.
func ratioArg(r model.Ratio) any {
	if v, ok := r.Value(); ok {
		return v
	}
	return nil
}

func ratioFromNull(v sql.NullFloat64) model.Ratio {
	if v.Valid {
		return model.DefinedRatio(v.Float64)
	}
	return model.UndefinedRatio()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var paramsJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &paramsJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
