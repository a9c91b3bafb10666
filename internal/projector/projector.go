// Package projector scales base-year socioeconomic indicator tables to each
// migration scenario's projected population and derives the ratio metrics
// consumed by index computation.
package projector

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/model"
)

// Options configures a projection pass.
type Options struct {
	BaseYear    int // most recent actual year the indicator table represents
	HorizonYear int // target year stamped on projected rows
}

// DefaultOptions matches the research inputs: 2023 actuals projected to 2065.
func DefaultOptions() Options {
	return Options{BaseYear: 2023, HorizonYear: 2065}
}

// Project applies each scenario's population percentage change to the
// base-year indicator rows. Scalable indicators move proportionally with
// population and round to the nearest integer; fixed survey values keep
// their base-year value. Each county also emits an unscaled row tagged with
// the actual-year scenario.
//
// Counties without projection data are skipped and logged; the returned
// table contains only counties present in both inputs.
func Project(rows []model.IndicatorRow, projections []model.CountyProjection, opts Options) []model.ProjectedRow {
	changes := indexPctChanges(projections)

	// Stable county ordering keeps the output table reproducible.
	sorted := make([]model.IndicatorRow, 0, len(rows))
	for _, r := range rows {
		if r.Year == opts.BaseYear {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FIPS < sorted[j].FIPS })

	var out []model.ProjectedRow
	for _, row := range sorted {
		byScenario, ok := changes[row.FIPS]
		if !ok {
			zap.L().Warn("projector: no projection data for county, skipping",
				zap.String("fips", row.FIPS),
			)
			continue
		}

		// Unscaled actual-year row first.
		out = append(out, derive(model.ProjectedRow{
			FIPS:     row.FIPS,
			Scenario: model.ScenarioActual,
			Year:     opts.BaseYear,
			Values:   copyValues(row.Values),
		}, row.Values))

		for _, code := range model.ProjectionScenarios {
			pct, ok := byScenario[code]
			if !ok {
				continue
			}
			out = append(out, derive(model.ProjectedRow{
				FIPS:     row.FIPS,
				Scenario: code,
				Year:     opts.HorizonYear,
				Values:   scaleValues(row.Values, pct),
			}, row.Values))
		}
	}
	return out
}

// indexPctChanges builds FIPS -> scenario -> percentage change.
func indexPctChanges(projections []model.CountyProjection) map[string]map[model.Scenario]float64 {
	changes := make(map[string]map[model.Scenario]float64)
	for _, p := range projections {
		byScenario, ok := changes[p.FIPS]
		if !ok {
			byScenario = make(map[model.Scenario]float64, len(model.ProjectionScenarios))
			changes[p.FIPS] = byScenario
		}
		byScenario[p.Scenario] = p.PctChange
	}
	return changes
}

// scaleValues applies the proportional-with-population assumption to
// scalable indicators and preserves fixed ones.
func scaleValues(values map[model.Indicator]float64, pctChange float64) map[model.Indicator]float64 {
	factor := 1 + pctChange/100
	scaled := make(map[model.Indicator]float64, len(values))
	for name, v := range values {
		if model.IndicatorRegistry[name].Scalable {
			scaled[name] = math.Round(v * factor)
		} else {
			scaled[name] = v
		}
	}
	return scaled
}

func copyValues(values map[model.Indicator]float64) map[model.Indicator]float64 {
	cp := make(map[model.Indicator]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return cp
}
