package forecast

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/model"
)

// Downscale distributes each scenario's regional horizon-year population down
// to every county in that region, proportional to the county's share of the
// region's baseline population. Intra-regional distribution is held constant
// across scenarios: scenarios move regional totals, not county weights.
//
// County populations round half-up, so regional conservation drifts by at
// most one unit per county in the region. No post-hoc redistribution is
// performed.
func Downscale(
	counties []model.County,
	baselines map[model.ClimateRegion]RegionBaseline,
	scenarios map[model.Scenario]RegionalScenario,
) []model.CountyProjection {
	// Stable scenario ordering keeps output byte-for-byte reproducible.
	codes := make([]model.Scenario, 0, len(scenarios))
	for code := range scenarios {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	var out []model.CountyProjection
	for _, c := range counties {
		if !c.Region.Valid() {
			continue
		}
		base, ok := baselines[c.Region]
		if !ok || base.Population == 0 {
			zap.L().Warn("forecast: region has no baseline population, skipping county",
				zap.String("fips", c.FIPS),
				zap.String("region", string(c.Region)),
			)
			continue
		}
		share := float64(c.PopulationBase) / float64(base.Population)

		for _, code := range codes {
			regional := scenarios[code].Populations[c.Region]
			pop := int64(math.Round(share * float64(regional)))

			p := model.CountyProjection{
				FIPS:       c.FIPS,
				Scenario:   code,
				Population: pop,
			}
			if c.PopulationCur > 0 {
				p.PctChange = (float64(pop) - float64(c.PopulationCur)) / float64(c.PopulationCur) * 100
			}
			out = append(out, p)
		}
	}
	return out
}
