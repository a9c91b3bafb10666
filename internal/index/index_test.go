package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrashift/climate-cli/internal/model"
)

// completeRow builds a projected row carrying every indexed indicator,
// scaled by f to separate counties.
func completeRow(fips string, scenario model.Scenario, f float64) model.ProjectedRow {
	return model.ProjectedRow{
		FIPS:     fips,
		Scenario: scenario,
		Year:     2065,
		Values: map[model.Indicator]float64{
			model.IndCrimeCount:       100 * f,
			model.IndMedianIncome:     50000 * f,
			model.IndEmployed:         8000 * f,
			model.IndBachelors:        3000 * f,
			model.IndEnrolled:         5000 * f,
			model.IndLessHSUnemployed: 200 * f,
			model.IndMedianHomeValue:  190000 * f,
			model.IndMedianGrossRent:  900 * f,
			model.IndHousingBurden:    30 * f,
			model.IndJobOpenings:      1200 * f,
		},
		UnemploymentRate:    model.DefinedRatio(4 * f),
		StudentTeacherRatio: model.DefinedRatio(15 * f),
		AvailableHousing:    400 * f,
	}
}

func TestDefaultProfilesValid(t *testing.T) {
	t.Parallel()

	profiles := DefaultProfiles()
	require.Len(t, profiles, 4)
	for _, p := range profiles {
		assert.NoError(t, p.Validate(), p.Name)
	}
}

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	bad := Profile{Name: "lopsided", Weights: map[model.Category]float64{
		model.CategoryCrime: 0.5,
		model.CategoryJobs:  0.6,
	}}
	assert.Error(t, bad.Validate())

	unknown := Profile{Name: "odd", Weights: map[model.Category]float64{
		model.Category("vibes"): 1.0,
	}}
	assert.Error(t, unknown.Validate())

	negative := Profile{Name: "neg", Weights: map[model.Category]float64{
		model.CategoryCrime: -0.5,
		model.CategoryJobs:  1.5,
	}}
	assert.Error(t, negative.Validate())

	unnamed := Profile{Weights: map[model.Category]float64{model.CategoryJobs: 1}}
	assert.Error(t, unnamed.Validate())
}

func TestComputeScoresAndWeights(t *testing.T) {
	t.Parallel()

	rows := []model.ProjectedRow{
		completeRow("36029", model.ScenarioS3, 1.0),
		completeRow("48201", model.ScenarioS3, 2.0),
		completeRow("06037", model.ScenarioS3, 3.0),
	}

	results, exclusions, err := Compute(rows, DefaultProfiles(), MethodMinMax)
	require.NoError(t, err)
	assert.Empty(t, exclusions)
	require.Len(t, results, 3)

	for _, r := range results {
		require.Len(t, r.CategoryScores, len(model.Categories))
		require.Len(t, r.Indices, 4)

		// Min-max category scores are means of [0,1] values.
		for cat, score := range r.CategoryScores {
			assert.GreaterOrEqual(t, score, 0.0, string(cat))
			assert.LessOrEqual(t, score, 1.0, string(cat))
		}

		// Balanced composite equals the plain category mean.
		var mean float64
		for _, s := range r.CategoryScores {
			mean += 0.2 * s
		}
		assert.InDelta(t, mean, r.Indices["balanced"], 1e-12)
	}
}

func TestComputeExcludesIncompleteRows(t *testing.T) {
	t.Parallel()

	missing := completeRow("19013", model.ScenarioS3, 1.5)
	delete(missing.Values, model.IndCrimeCount)

	undefinedSTR := completeRow("19015", model.ScenarioS3, 1.2)
	undefinedSTR.StudentTeacherRatio = model.UndefinedRatio()

	rows := []model.ProjectedRow{
		completeRow("36029", model.ScenarioS3, 1.0),
		completeRow("48201", model.ScenarioS3, 2.0),
		missing,
		undefinedSTR,
	}

	results, exclusions, err := Compute(rows, DefaultProfiles(), MethodMinMax)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	require.Len(t, exclusions, 2)

	reasons := map[string]string{}
	for _, e := range exclusions {
		reasons[e.FIPS] = e.Reason
	}
	assert.Equal(t, "missing CRIMINAL_ACTIVITIES", reasons["19013"])
	assert.Equal(t, "missing STUDENT_TEACHER_RATIO", reasons["19015"])
}

func TestComputeZScoreInversion(t *testing.T) {
	t.Parallel()

	low := completeRow("36029", model.ScenarioS3, 1.0)
	high := completeRow("48201", model.ScenarioS3, 1.0)
	// Same everywhere except crime: more crime must rank worse.
	low.Values[model.IndCrimeCount] = 10
	high.Values[model.IndCrimeCount] = 1000

	results, _, err := Compute([]model.ProjectedRow{low, high}, DefaultProfiles(), MethodZScore)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byFIPS := map[string]Result{}
	for _, r := range results {
		byFIPS[r.FIPS] = r
	}
	assert.Greater(t,
		byFIPS["36029"].CategoryScores[model.CategoryCrime],
		byFIPS["48201"].CategoryScores[model.CategoryCrime],
	)
	assert.Greater(t, byFIPS["36029"].Indices["safety_focused"], byFIPS["48201"].Indices["safety_focused"])
}

func TestComputeRejectsInvalidProfiles(t *testing.T) {
	t.Parallel()

	rows := []model.ProjectedRow{completeRow("36029", model.ScenarioS3, 1.0)}
	bad := []Profile{{Name: "broken", Weights: map[model.Category]float64{model.CategoryJobs: 0.5}}}

	_, _, err := Compute(rows, bad, MethodMinMax)
	assert.Error(t, err)

	_, _, err = Compute(rows, nil, MethodMinMax)
	assert.Error(t, err)
}

func TestComputeIdempotent(t *testing.T) {
	t.Parallel()

	rows := []model.ProjectedRow{
		completeRow("36029", model.ScenarioS3, 1.0),
		completeRow("36029", model.ScenarioS5b, 1.4),
		completeRow("48201", model.ScenarioS3, 2.0),
		completeRow("48201", model.ScenarioS5b, 1.9),
	}

	first, _, err := Compute(rows, DefaultProfiles(), MethodMinMax)
	require.NoError(t, err)
	second, _, err := Compute(rows, DefaultProfiles(), MethodMinMax)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
