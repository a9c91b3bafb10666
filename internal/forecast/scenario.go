package forecast

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/terrashift/climate-cli/internal/model"
)

// Sentinel errors for scenario-level invariant violations. Either aborts the
// offending scenario, never the whole run.
var (
	ErrShareSumInvariant  = eris.New("forecast: regional shares do not sum to 100")
	ErrNegativeProjection = eris.New("forecast: derived regional population is negative")
)

// CensusTarget2065 is the Census Bureau national population projection for
// 2065 used as the horizon-year total.
const CensusTarget2065 = 366_207_000

// ShareTable holds the externally sourced ground-truth regional shares and
// the national horizon-year target. Shares are percent of national
// population per region and must sum to 100 per scenario.
type ShareTable struct {
	NationalTarget int64             `yaml:"national_target_population"`
	Baseline       model.ShareVector `yaml:"baseline"` // no-climate reference (S3)
	Climate        model.ShareVector `yaml:"climate"`  // full climate effect (S5)
	NoEffect       model.ShareVector `yaml:"no_effect"`
}

// DefaultShareTable returns the projected 2065 regional population shares
// from Table 5 of Qin Fan et al., with the S3 column as the no-climate
// baseline and the S5 column as the full climate effect.
func DefaultShareTable() ShareTable {
	return ShareTable{
		NationalTarget: CensusTarget2065,
		NoEffect: model.ShareVector{
			model.RegionNortheast:  12.48,
			model.RegionMidwest:    14.10,
			model.RegionSouth:      46.23,
			model.RegionWest:       13.72,
			model.RegionCalifornia: 13.47,
		},
		Baseline: model.ShareVector{
			model.RegionNortheast:  15.05,
			model.RegionMidwest:    21.33,
			model.RegionSouth:      41.53,
			model.RegionWest:       8.78,
			model.RegionCalifornia: 13.31,
		},
		Climate: model.ShareVector{
			model.RegionNortheast:  16.42,
			model.RegionMidwest:    20.35,
			model.RegionSouth:      38.18,
			model.RegionWest:       10.07,
			model.RegionCalifornia: 14.98,
		},
	}
}

// shareTableFile is the YAML wire form of a share table override.
type shareTableFile struct {
	NationalTarget int64                         `yaml:"national_target_population"`
	Scenarios      map[string]map[string]float64 `yaml:"scenarios"`
}

// LoadShareTable reads a ground-truth share table from a YAML file. The file
// must carry "baseline", "climate", and optionally "no_effect" scenario
// blocks keyed by region name. A zero national target falls back to the
// census 2065 projection.
func LoadShareTable(path string) (ShareTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ShareTable{}, eris.Wrapf(err, "forecast: read share table %s", path)
	}

	var f shareTableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ShareTable{}, eris.Wrap(err, "forecast: parse share table")
	}

	tbl := ShareTable{NationalTarget: f.NationalTarget}
	if tbl.NationalTarget == 0 {
		tbl.NationalTarget = CensusTarget2065
	}

	toVector := func(name string) (model.ShareVector, error) {
		raw, ok := f.Scenarios[name]
		if !ok {
			return nil, nil
		}
		v := make(model.ShareVector, len(raw))
		for region, share := range raw {
			r, ok := model.AssignRegion(region)
			if !ok {
				// Region blocks are keyed by region label, not state.
				r = model.ClimateRegion(region)
			}
			if !r.Valid() {
				return nil, eris.Errorf("forecast: unknown region %q in share table", region)
			}
			v[r] = share
		}
		return v, nil
	}

	if tbl.Baseline, err = toVector("baseline"); err != nil {
		return ShareTable{}, err
	}
	if tbl.Climate, err = toVector("climate"); err != nil {
		return ShareTable{}, err
	}
	if tbl.NoEffect, err = toVector("no_effect"); err != nil {
		return ShareTable{}, err
	}
	if tbl.Baseline == nil || tbl.Climate == nil {
		return ShareTable{}, eris.New("forecast: share table must define baseline and climate scenarios")
	}
	return tbl, nil
}

// RegionalScenario is one generated scenario: its share vector and the
// absolute regional populations at the horizon year.
type RegionalScenario struct {
	Shares      model.ShareVector               `json:"shares"`
	Populations map[model.ClimateRegion]int64   `json:"populations"`
	Deviations  map[model.ClimateRegion]float64 `json:"deviations,omitempty"` // percentage points vs baseline
}

// GenerateResult carries the scenarios that passed validation and the
// per-scenario failures. One bad scenario never blocks the others.
type GenerateResult struct {
	Scenarios map[model.Scenario]RegionalScenario
	Failures  map[model.Scenario]error
}

// Generate derives the full regional scenario table from the ground truth.
//
// For each region the climate-driven deviation is computed in
// percentage-point space (climate share minus baseline share); each intensity
// variant adds the scaled deviation back onto the baseline share. Deviations
// scale linearly this way without compounding rounding error, which raw
// population deltas would not.
func Generate(tbl ShareTable) GenerateResult {
	res := GenerateResult{
		Scenarios: make(map[model.Scenario]RegionalScenario),
		Failures:  make(map[model.Scenario]error),
	}

	// Ground-truth scenarios pass through unchanged.
	ground := map[model.Scenario]model.ShareVector{
		model.ScenarioS1: tbl.NoEffect,
		model.ScenarioS3: tbl.Baseline,
	}

	deviation := make(map[model.ClimateRegion]float64, len(model.Regions))
	if validateShares(tbl.Baseline) == nil && validateShares(tbl.Climate) == nil {
		for _, r := range model.Regions {
			deviation[r] = tbl.Climate[r] - tbl.Baseline[r]
		}
		for _, s := range []model.Scenario{model.ScenarioS5a, model.ScenarioS5b, model.ScenarioS5c} {
			m, _ := s.Intensity()
			v := make(model.ShareVector, len(model.Regions))
			for _, r := range model.Regions {
				v[r] = tbl.Baseline[r] + m*deviation[r]
			}
			ground[s] = v
		}
	} else {
		// The derived variants cannot exist without valid ground truth;
		// record the failure per derived scenario below via validation.
		for _, s := range []model.Scenario{model.ScenarioS5a, model.ScenarioS5b, model.ScenarioS5c} {
			ground[s] = nil
		}
	}

	for code, shares := range ground {
		if shares == nil {
			res.Failures[code] = eris.Wrap(ErrShareSumInvariant, string(code))
			continue
		}
		if err := validateShares(shares); err != nil {
			zap.L().Error("forecast: scenario failed share validation, skipping",
				zap.String("scenario", string(code)),
				zap.Float64("sum", shares.Sum()),
			)
			res.Failures[code] = eris.Wrap(err, string(code))
			continue
		}

		pops, err := sharesToPopulations(shares, tbl.NationalTarget)
		if err != nil {
			zap.L().Error("forecast: scenario produced invalid populations, skipping",
				zap.String("scenario", string(code)),
				zap.Error(err),
			)
			res.Failures[code] = eris.Wrap(err, string(code))
			continue
		}

		sc := RegionalScenario{Shares: shares, Populations: pops}
		if _, generated := code.Intensity(); generated {
			sc.Deviations = deviation
		}
		res.Scenarios[code] = sc
	}

	return res
}

// validateShares enforces the share-conservation invariant. It never
// normalizes: a bad sum signals a data-entry error in the ground truth.
func validateShares(v model.ShareVector) error {
	if v == nil || !v.SumsTo100() {
		return ErrShareSumInvariant
	}
	return nil
}

// sharesToPopulations converts a share vector to absolute regional
// populations, rounding half-up. A negative derived population is a modeling
// bug and fails loudly rather than being clamped.
func sharesToPopulations(v model.ShareVector, nationalTarget int64) (map[model.ClimateRegion]int64, error) {
	pops := make(map[model.ClimateRegion]int64, len(model.Regions))
	for _, r := range model.Regions {
		p := int64(math.Round(v[r] / 100 * float64(nationalTarget)))
		if p < 0 {
			return nil, eris.Wrapf(ErrNegativeProjection, "region %s share %.2f", r, v[r])
		}
		pops[r] = p
	}
	return pops, nil
}
