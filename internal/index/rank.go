package index

import "sort"

// Ranking is one row of the rankings table: a county's position under one
// named index within one scenario. Rank 1 is best; ties share a rank and the
// following rank skips the tied block (competition ranking).
type Ranking struct {
	FIPS     string  `json:"fips"`
	Scenario string  `json:"scenario"`
	Index    string  `json:"index"`
	Value    float64 `json:"value"`
	Rank     int     `json:"rank"`
}

// Rank derives the rankings table from an index table. It is a pure view:
// recomputing it from the stored index table reproduces it exactly, without
// re-running any upstream stage.
func Rank(results []Result) []Ranking {
	// Collect index names present across the results.
	nameSet := make(map[string]bool)
	for _, r := range results {
		for name := range r.Indices {
			nameSet[name] = true
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	// Group rows by scenario so counties compete within one scenario.
	byScenario := make(map[string][]Result)
	var scenarios []string
	for _, r := range results {
		s := string(r.Scenario)
		if _, ok := byScenario[s]; !ok {
			scenarios = append(scenarios, s)
		}
		byScenario[s] = append(byScenario[s], r)
	}
	sort.Strings(scenarios)

	var out []Ranking
	for _, scenario := range scenarios {
		group := byScenario[scenario]
		for _, name := range names {
			ranked := make([]Ranking, 0, len(group))
			for _, r := range group {
				v, ok := r.Indices[name]
				if !ok {
					continue
				}
				ranked = append(ranked, Ranking{
					FIPS:     r.FIPS,
					Scenario: scenario,
					Index:    name,
					Value:    v,
				})
			}

			// Descending by value; equal values keep input order and
			// receive identical ranks below.
			sort.SliceStable(ranked, func(i, j int) bool {
				return ranked[i].Value > ranked[j].Value
			})
			for i := range ranked {
				if i > 0 && ranked[i].Value == ranked[i-1].Value {
					ranked[i].Rank = ranked[i-1].Rank
					continue
				}
				ranked[i].Rank = i + 1
			}

			out = append(out, ranked...)
		}
	}
	return out
}
