package table

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
)

// SaveIndices writes the socioeconomic index table: one row per
// (county, scenario), category scores then one column per weighting profile.
func SaveIndices(path string, results []index.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "table: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	profileNames := collectProfileNames(results)

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"COUNTY_FIPS", "SCENARIO"}
	for _, cat := range model.Categories {
		header = append(header, string(cat)+"_score")
	}
	for _, name := range profileNames {
		header = append(header, "socioeconomic_index_"+name)
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "table: write indices header")
	}

	for _, r := range results {
		rec := []string{r.FIPS, string(r.Scenario)}
		for _, cat := range model.Categories {
			rec = append(rec, strconv.FormatFloat(r.CategoryScores[cat], 'f', 6, 64))
		}
		for _, name := range profileNames {
			rec = append(rec, strconv.FormatFloat(r.Indices[name], 'f', 6, 64))
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "table: write index row %s/%s", r.FIPS, r.Scenario)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "table: flush indices")
}

// SaveRankings writes the rankings table parallel to the index table.
func SaveRankings(path string, rankings []index.Ranking) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "table: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"COUNTY_FIPS", "SCENARIO", "INDEX", "VALUE", "RANK"}); err != nil {
		return eris.Wrap(err, "table: write rankings header")
	}
	for _, r := range rankings {
		rec := []string{
			r.FIPS, r.Scenario, r.Index,
			strconv.FormatFloat(r.Value, 'f', 6, 64),
			strconv.Itoa(r.Rank),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "table: write ranking %s/%s/%s", r.FIPS, r.Scenario, r.Index)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "table: flush rankings")
}

func collectProfileNames(results []index.Result) []string {
	set := make(map[string]bool)
	for _, r := range results {
		for name := range r.Indices {
			set[name] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
