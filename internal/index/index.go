package index

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/model"
)

// column describes one indicator entering index computation: where its value
// comes from on a projected row, its category, and whether higher raw values
// are undesirable.
type column struct {
	name     string
	category model.Category
	invert   bool
	value    func(model.ProjectedRow) (float64, bool)
}

// rawColumn reads an indicator straight from the scaled Values map.
func rawColumn(ind model.Indicator) func(model.ProjectedRow) (float64, bool) {
	return func(row model.ProjectedRow) (float64, bool) {
		v, ok := row.Values[ind]
		return v, ok
	}
}

// columns is the closed set of indexed indicators. Derived ratios enter
// through their explicit optional types, so an undefined denominator shows
// up as an exclusion instead of a NaN poisoning a category mean.
var columns = []column{
	{string(model.IndCrimeCount), model.CategoryCrime, true, rawColumn(model.IndCrimeCount)},

	{string(model.IndMedianIncome), model.CategoryEconomic, false, rawColumn(model.IndMedianIncome)},
	{string(model.IndEmployed), model.CategoryEconomic, false, rawColumn(model.IndEmployed)},
	{"UNEMPLOYMENT_RATE", model.CategoryEconomic, true, func(row model.ProjectedRow) (float64, bool) {
		return row.UnemploymentRate.Value()
	}},

	{string(model.IndBachelors), model.CategoryEducation, false, rawColumn(model.IndBachelors)},
	{string(model.IndEnrolled), model.CategoryEducation, false, rawColumn(model.IndEnrolled)},
	{string(model.IndLessHSUnemployed), model.CategoryEducation, true, rawColumn(model.IndLessHSUnemployed)},
	{"STUDENT_TEACHER_RATIO", model.CategoryEducation, true, func(row model.ProjectedRow) (float64, bool) {
		return row.StudentTeacherRatio.Value()
	}},

	{string(model.IndMedianHomeValue), model.CategoryHousing, false, rawColumn(model.IndMedianHomeValue)},
	{string(model.IndMedianGrossRent), model.CategoryHousing, false, rawColumn(model.IndMedianGrossRent)},
	{string(model.IndHousingBurden), model.CategoryHousing, true, rawColumn(model.IndHousingBurden)},
	{"AVAILABLE_HOUSING_UNITS", model.CategoryHousing, false, func(row model.ProjectedRow) (float64, bool) {
		return row.AvailableHousing, true
	}},

	{string(model.IndJobOpenings), model.CategoryJobs, false, rawColumn(model.IndJobOpenings)},
}

// Result is one (county, scenario) row of the composite index table.
type Result struct {
	FIPS           string                     `json:"fips"`
	Scenario       model.Scenario             `json:"scenario"`
	CategoryScores map[model.Category]float64 `json:"category_scores"`
	Indices        map[string]float64         `json:"indices"` // profile name -> composite
}

// Exclusion records a row dropped from index computation, with its audit
// trail. The row stays in the raw projection tables.
type Exclusion struct {
	FIPS     string         `json:"fips"`
	Scenario model.Scenario `json:"scenario"`
	Reason   string         `json:"reason"`
}

// Compute normalizes the indexed indicators across the full
// cross-county/cross-scenario dataset, averages them into category scores,
// and combines categories under each weighting profile.
//
// Rows missing any indexed indicator (or with an undefined ratio) are
// excluded with a reason and do not distort the normalization of the rest.
func Compute(rows []model.ProjectedRow, profiles []Profile, method Method) ([]Result, []Exclusion, error) {
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if len(profiles) == 0 {
		return nil, nil, eris.New("index: no weighting profiles given")
	}

	// Partition complete rows from excluded ones first so normalization
	// only sees counties that will actually be scored.
	var complete []model.ProjectedRow
	var exclusions []Exclusion
	for _, row := range rows {
		if reason := incompleteReason(row); reason != "" {
			exclusions = append(exclusions, Exclusion{
				FIPS:     row.FIPS,
				Scenario: row.Scenario,
				Reason:   reason,
			})
			continue
		}
		complete = append(complete, row)
	}

	zap.L().Info("index: computing composite indices",
		zap.Int("rows", len(complete)),
		zap.Int("excluded", len(exclusions)),
		zap.String("method", string(method)),
	)

	if len(complete) == 0 {
		return nil, exclusions, nil
	}

	// Normalize column by column over the whole dataset.
	normalized := make(map[string][]float64, len(columns))
	for _, col := range columns {
		raw := make([]float64, len(complete))
		for i, row := range complete {
			v, _ := col.value(row)
			raw[i] = v
		}
		normalized[col.name] = normalize(raw, method, col.invert)
	}

	results := make([]Result, len(complete))
	for i, row := range complete {
		scores := make(map[model.Category]float64, len(model.Categories))
		counts := make(map[model.Category]int, len(model.Categories))
		for _, col := range columns {
			scores[col.category] += normalized[col.name][i]
			counts[col.category]++
		}
		for cat, n := range counts {
			scores[cat] /= float64(n)
		}

		indices := make(map[string]float64, len(profiles))
		for _, p := range profiles {
			var composite float64
			for cat, w := range p.Weights {
				composite += scores[cat] * w
			}
			indices[p.Name] = composite
		}

		results[i] = Result{
			FIPS:           row.FIPS,
			Scenario:       row.Scenario,
			CategoryScores: scores,
			Indices:        indices,
		}
	}

	// Stable output order: FIPS, then scenario.
	sort.Slice(results, func(i, j int) bool {
		if results[i].FIPS != results[j].FIPS {
			return results[i].FIPS < results[j].FIPS
		}
		return results[i].Scenario < results[j].Scenario
	})

	return results, exclusions, nil
}

// incompleteReason returns a non-empty audit reason when the row lacks data
// for any indexed indicator.
func incompleteReason(row model.ProjectedRow) string {
	for _, col := range columns {
		if _, ok := col.value(row); !ok {
			return "missing " + col.name
		}
	}
	return ""
}
