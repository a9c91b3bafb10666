// Package forecast implements the scenario-based population projection
// pipeline: regional baseline aggregation, climate-migration scenario
// generation, and proportional county downscaling.
package forecast

import (
	"math"

	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/model"
)

// RegionBaseline holds one region's aggregate baseline population and its
// share of the national total, as a percentage rounded to 2 decimal places.
type RegionBaseline struct {
	Population int64   `json:"population"`
	SharePct   float64 `json:"share_pct"`
}

// AggregateRegions groups counties by climate region and sums baseline
// populations. Counties whose state resolves to no region are returned in
// excluded and never enter the national denominator. A region with zero
// counties reports share 0.
func AggregateRegions(counties []model.County) (map[model.ClimateRegion]RegionBaseline, []model.County) {
	totals := make(map[model.ClimateRegion]int64, len(model.Regions))
	var national int64
	var excluded []model.County

	for _, c := range counties {
		if !c.Region.Valid() {
			zap.L().Warn("forecast: county outside climate-region universe, excluding",
				zap.String("fips", c.FIPS),
				zap.String("state", c.StateName),
			)
			excluded = append(excluded, c)
			continue
		}
		totals[c.Region] += c.PopulationBase
		national += c.PopulationBase
	}

	out := make(map[model.ClimateRegion]RegionBaseline, len(model.Regions))
	for _, r := range model.Regions {
		b := RegionBaseline{Population: totals[r]}
		if national > 0 {
			b.SharePct = roundTo(float64(totals[r])/float64(national)*100, 2)
		}
		out[r] = b
	}
	return out, excluded
}

// BaselineShares extracts the share vector from an aggregation result.
func BaselineShares(baselines map[model.ClimateRegion]RegionBaseline) model.ShareVector {
	v := make(model.ShareVector, len(baselines))
	for r, b := range baselines {
		v[r] = b.SharePct
	}
	return v
}

// roundTo rounds half-up to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
