// Package pipeline orchestrates the projection stages end to end: registry
// cleaning, scenario generation, county downscaling, indicator projection,
// and index computation, persisting every output table under one run ID.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/census"
	"github.com/terrashift/climate-cli/internal/clean"
	"github.com/terrashift/climate-cli/internal/config"
	"github.com/terrashift/climate-cli/internal/forecast"
	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
	"github.com/terrashift/climate-cli/internal/projector"
	"github.com/terrashift/climate-cli/internal/store"
	"github.com/terrashift/climate-cli/internal/table"
)

// Pipeline runs the projection stages against CSV inputs under DataDir and
// persists outputs to the store and OutputDir.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
}

// New creates a Pipeline.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID  string
	Detail *model.RunResult
}

// Run executes the full pipeline. Per-scenario failures are recorded in the
// run result without aborting the remaining scenarios; stage-level failures
// mark the run failed and are returned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	params := model.RunParams{
		BaseYear:       p.cfg.Census.CurrentYear,
		HorizonYear:    p.cfg.Forecast.HorizonYear,
		NationalTarget: p.cfg.Forecast.NationalTarget,
		Method:         p.cfg.Index.Method,
		Profiles:       profileNames(p.cfg),
	}

	run, err := p.store.CreateRun(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Warn("failed to mark run running", zap.Error(err))
	}

	detail, runErr := p.execute(ctx, run.ID)
	if runErr != nil {
		detail = &model.RunResult{Error: runErr.Error()}
	}
	if err := p.store.CompleteRun(ctx, run.ID, detail); err != nil {
		log.Warn("failed to record run result", zap.Error(err))
	}
	if runErr != nil {
		return nil, runErr
	}
	return &Result{RunID: run.ID, Detail: detail}, nil
}

func (p *Pipeline) execute(ctx context.Context, runID string) (*model.RunResult, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", runID))

	// Registry.
	raw, err := table.LoadCounties(filepath.Join(p.cfg.Paths.DataDir, "counties.csv"))
	if err != nil {
		return nil, err
	}
	// BuildRegistry dedupes internally; its exclusions cover both the
	// duplicate losers and the out-of-universe rows.
	counties, regExclusions, err := clean.BuildRegistry(raw)
	if err != nil {
		return nil, err
	}

	// Regional baselines and scenario table.
	baselines, skipped := forecast.AggregateRegions(counties)
	if len(skipped) > 0 {
		log.Warn("counties without a valid region skipped from baselines", zap.Int("count", len(skipped)))
	}

	tbl := forecast.DefaultShareTable()
	if p.cfg.Forecast.ShareTablePath != "" {
		tbl, err = forecast.LoadShareTable(p.cfg.Forecast.ShareTablePath)
		if err != nil {
			return nil, err
		}
	}
	if p.cfg.Forecast.NationalTarget > 0 {
		tbl.NationalTarget = p.cfg.Forecast.NationalTarget
	}

	gen := forecast.Generate(tbl)
	var failed []string
	for code, genErr := range gen.Failures {
		failed = append(failed, string(code))
		log.Error("scenario generation failed", zap.String("scenario", string(code)), zap.Error(genErr))
	}
	sort.Strings(failed)
	if len(gen.Scenarios) == 0 {
		return nil, eris.New("pipeline: no scenario passed validation")
	}

	// County projections.
	projections := forecast.Downscale(counties, baselines, gen.Scenarios)

	// Indicator projection.
	indicators, err := p.loadIndicators()
	if err != nil {
		return nil, err
	}
	projected := projector.Project(indicators, projections, projector.Options{
		BaseYear:    p.cfg.Census.CurrentYear,
		HorizonYear: p.cfg.Forecast.HorizonYear,
	})

	// Indices and rankings.
	profiles, err := p.loadProfiles()
	if err != nil {
		return nil, err
	}
	results, exclusions, err := index.Compute(projected, profiles, index.Method(p.cfg.Index.Method))
	if err != nil {
		return nil, err
	}
	annotateExclusions(projected, exclusions)
	rankings := index.Rank(results)

	// Persist.
	if err := p.store.SaveProjections(ctx, runID, projections); err != nil {
		return nil, err
	}
	if err := p.store.SaveProjectedRows(ctx, runID, projected); err != nil {
		return nil, err
	}
	if err := p.store.SaveIndices(ctx, runID, results); err != nil {
		return nil, err
	}
	if err := p.store.SaveRankings(ctx, runID, rankings); err != nil {
		return nil, err
	}

	if err := p.writeOutputs(counties, projections, projected, results, rankings); err != nil {
		return nil, err
	}

	log.Info("pipeline complete",
		zap.Int("counties", len(counties)),
		zap.Int("scenarios", len(gen.Scenarios)),
		zap.Int("registry_exclusions", len(regExclusions)),
		zap.Int("index_exclusions", len(exclusions)),
	)

	return &model.RunResult{
		Counties:        len(counties),
		Scenarios:       len(gen.Scenarios),
		FailedScenarios: failed,
		ExcludedRows:    len(exclusions),
	}, nil
}

// loadIndicators merges every per-dataset indicator CSV for the base year.
// Missing dataset files are tolerated; counties simply lack those columns
// and are excluded from index computation with an audit reason.
func (p *Pipeline) loadIndicators() ([]model.IndicatorRow, error) {
	paths := []string{
		census.ExtractPath(p.cfg.Paths.DataDir, "population", p.cfg.Census.CurrentYear),
		census.ExtractPath(p.cfg.Paths.DataDir, "economic", p.cfg.Census.CurrentYear),
		census.ExtractPath(p.cfg.Paths.DataDir, "education", p.cfg.Census.CurrentYear),
		census.ExtractPath(p.cfg.Paths.DataDir, "housing", p.cfg.Census.CurrentYear),
		filepath.Join(p.cfg.Paths.DataDir, "crime_data.csv"),
		filepath.Join(p.cfg.Paths.DataDir, "jobs_data.csv"),
		filepath.Join(p.cfg.Paths.DataDir, "school_data.csv"),
	}

	var tables [][]model.IndicatorRow
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			zap.L().Warn("pipeline: indicator file missing, continuing without it", zap.String("path", path))
			continue
		}
		rows, err := table.LoadIndicators(path)
		if err != nil {
			return nil, err
		}
		tables = append(tables, rows)
	}
	if len(tables) == 0 {
		return nil, eris.Errorf("pipeline: no indicator tables under %s", p.cfg.Paths.DataDir)
	}
	return table.MergeIndicators(tables...), nil
}

func (p *Pipeline) loadProfiles() ([]index.Profile, error) {
	if p.cfg.Index.ProfilesPath != "" {
		return index.LoadProfiles(p.cfg.Index.ProfilesPath)
	}
	return index.DefaultProfiles(), nil
}

func (p *Pipeline) writeOutputs(
	counties []model.County,
	projections []model.CountyProjection,
	projected []model.ProjectedRow,
	results []index.Result,
	rankings []index.Ranking,
) error {
	out := p.cfg.Paths.OutputDir
	if err := os.MkdirAll(out, 0o755); err != nil {
		return eris.Wrap(err, "pipeline: create output dir")
	}

	if err := table.SaveCounties(filepath.Join(out, "county_registry.csv"), counties); err != nil {
		return err
	}
	if err := table.SaveProjections(filepath.Join(out, "population_projections.csv"), counties, projections, p.cfg.Forecast.HorizonYear); err != nil {
		return err
	}
	if err := table.SaveProjectedRows(filepath.Join(out, "projected_indicators.csv"), projected); err != nil {
		return err
	}
	if err := table.SaveIndices(filepath.Join(out, "socioeconomic_indices.csv"), results); err != nil {
		return err
	}
	return table.SaveRankings(filepath.Join(out, "county_rankings.csv"), rankings)
}

// annotateExclusions copies index-stage exclusion reasons back onto the
// projected rows so the persisted table carries the audit trail.
func annotateExclusions(rows []model.ProjectedRow, exclusions []index.Exclusion) {
	if len(exclusions) == 0 {
		return
	}
	reasons := make(map[string]string, len(exclusions))
	for _, e := range exclusions {
		reasons[e.FIPS+"|"+string(e.Scenario)] = e.Reason
	}
	for i := range rows {
		if reason, ok := reasons[rows[i].FIPS+"|"+string(rows[i].Scenario)]; ok {
			rows[i].ExcludedReason = reason
		}
	}
}

func profileNames(cfg *config.Config) []string {
	if cfg.Index.ProfilesPath != "" {
		return nil // recorded implicitly via the file; names resolved at load
	}
	names := make([]string, 0, 4)
	for _, p := range index.DefaultProfiles() {
		names = append(names, p.Name)
	}
	return names
}
