package model

import "math"

// Scenario identifies one set of migration assumptions. The codes follow the
// Qin Fan et al. naming: S1 is the no-climate-effect projection, S3 the
// reference (baseline) projection, and the S5 family applies the full climate
// effect at varying intensity.
type Scenario string

const (
	// ScenarioActual tags unscaled most-recent-actual-year rows.
	ScenarioActual Scenario = "Original"

	ScenarioS1  Scenario = "S1"  // no climate migration effect
	ScenarioS3  Scenario = "S3"  // reference baseline
	ScenarioS5a Scenario = "S5a" // half climate effect (0.5x)
	ScenarioS5b Scenario = "S5b" // full climate effect (1.0x)
	ScenarioS5c Scenario = "S5c" // double climate effect (2.0x)
)

// ProjectionScenarios lists the scenarios carrying 2065 projections, in
// stable output order.
var ProjectionScenarios = []Scenario{
	ScenarioS1, ScenarioS3, ScenarioS5a, ScenarioS5b, ScenarioS5c,
}

// Intensity returns the climate-effect multiplier for generated S5 variants,
// and ok=false for scenarios that are ground truth rather than generated.
func (s Scenario) Intensity() (float64, bool) {
	switch s {
	case ScenarioS5a:
		return 0.5, true
	case ScenarioS5b:
		return 1.0, true
	case ScenarioS5c:
		return 2.0, true
	}
	return 0, false
}

// ShareVector holds one percentage of national population per climate region.
// A valid vector sums to 100 within tolerance.
type ShareVector map[ClimateRegion]float64

// ShareSumTolerance is the accepted drift of a share vector's sum from 100.
const ShareSumTolerance = 0.01

// Sum returns the total of all regional shares.
func (v ShareVector) Sum() float64 {
	var total float64
	for _, r := range Regions {
		total += v[r]
	}
	return total
}

// SumsTo100 reports whether the vector satisfies the share-conservation
// invariant.
func (v ShareVector) SumsTo100() bool {
	return math.Abs(v.Sum()-100) <= ShareSumTolerance
}

// CountyProjection is one county's projected population under one scenario.
type CountyProjection struct {
	FIPS       string   `json:"fips"`
	Scenario   Scenario `json:"scenario"`
	Population int64    `json:"population"`
	// PctChange is the percentage change relative to the most recent
	// actual population, used to scale socioeconomic indicators.
	PctChange float64 `json:"pct_change"`
}
