package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrashift/climate-cli/internal/model"
)

func rankResult(fips string, scenario model.Scenario, indices map[string]float64) Result {
	return Result{FIPS: fips, Scenario: scenario, Indices: indices}
}

func TestRankDescendingWithTies(t *testing.T) {
	t.Parallel()

	results := []Result{
		rankResult("36029", model.ScenarioS3, map[string]float64{"balanced": 0.9}),
		rankResult("48201", model.ScenarioS3, map[string]float64{"balanced": 0.7}),
		rankResult("06037", model.ScenarioS3, map[string]float64{"balanced": 0.7}),
		rankResult("19013", model.ScenarioS3, map[string]float64{"balanced": 0.1}),
	}

	rankings := Rank(results)
	require.Len(t, rankings, 4)

	byFIPS := map[string]Ranking{}
	for _, r := range rankings {
		byFIPS[r.FIPS] = r
	}

	assert.Equal(t, 1, byFIPS["36029"].Rank)
	// Ties share a rank; the rank after a tied block skips it.
	assert.Equal(t, 2, byFIPS["48201"].Rank)
	assert.Equal(t, 2, byFIPS["06037"].Rank)
	assert.Equal(t, 4, byFIPS["19013"].Rank)
}

func TestRankPerScenarioAndIndex(t *testing.T) {
	t.Parallel()

	results := []Result{
		rankResult("36029", model.ScenarioS3, map[string]float64{"balanced": 0.2, "economy_focused": 0.9}),
		rankResult("48201", model.ScenarioS3, map[string]float64{"balanced": 0.8, "economy_focused": 0.1}),
		rankResult("36029", model.ScenarioS5b, map[string]float64{"balanced": 0.5, "economy_focused": 0.5}),
	}

	rankings := Rank(results)
	require.Len(t, rankings, 6)

	find := func(fips, scenario, index string) Ranking {
		for _, r := range rankings {
			if r.FIPS == fips && r.Scenario == scenario && r.Index == index {
				return r
			}
		}
		t.Fatalf("ranking not found: %s %s %s", fips, scenario, index)
		return Ranking{}
	}

	assert.Equal(t, 2, find("36029", "S3", "balanced").Rank)
	assert.Equal(t, 1, find("48201", "S3", "balanced").Rank)
	assert.Equal(t, 1, find("36029", "S3", "economy_focused").Rank)
	// A lone county in its scenario ranks first.
	assert.Equal(t, 1, find("36029", "S5b", "balanced").Rank)
}

func TestRankRecomputableFromIndexTableAlone(t *testing.T) {
	t.Parallel()

	rows := []model.ProjectedRow{
		completeRow("36029", model.ScenarioS3, 1.0),
		completeRow("48201", model.ScenarioS3, 2.0),
		completeRow("06037", model.ScenarioS3, 3.0),
	}
	results, _, err := Compute(rows, DefaultProfiles(), MethodMinMax)
	require.NoError(t, err)

	first := Rank(results)
	second := Rank(results)
	assert.Equal(t, first, second)
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Rank(nil))
}
