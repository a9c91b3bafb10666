package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/terrashift/climate-cli/internal/model"
)

// SaveProjections writes the county population projection table in wide
// form: one row per county, a baseline column, one population column per
// scenario, and a matching percentage-change column.
func SaveProjections(path string, counties []model.County, projections []model.CountyProjection, horizonYear int) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "table: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	byCounty := make(map[string]map[model.Scenario]model.CountyProjection)
	for _, p := range projections {
		if byCounty[p.FIPS] == nil {
			byCounty[p.FIPS] = make(map[model.Scenario]model.CountyProjection)
		}
		byCounty[p.FIPS][p.Scenario] = p
	}

	sorted := make([]model.County, len(counties))
	copy(sorted, counties)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FIPS < sorted[j].FIPS })

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"COUNTY_FIPS", "NAME", "STATE_NAME", "CLIMATE_REGION", "POPULATION_2010", "POPULATION_2023"}
	for _, s := range model.ProjectionScenarios {
		header = append(header, fmt.Sprintf("POPULATION_%d_%s", horizonYear, s))
	}
	for _, s := range model.ProjectionScenarios {
		header = append(header, fmt.Sprintf("%s_PCT_CHANGE", s))
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "table: write projections header")
	}

	for _, c := range sorted {
		byScenario, ok := byCounty[c.FIPS]
		if !ok {
			continue
		}
		rec := []string{
			c.FIPS, c.Name, c.StateName, string(c.Region),
			strconv.FormatInt(c.PopulationBase, 10),
			strconv.FormatInt(c.PopulationCur, 10),
		}
		for _, s := range model.ProjectionScenarios {
			if p, ok := byScenario[s]; ok {
				rec = append(rec, strconv.FormatInt(p.Population, 10))
			} else {
				rec = append(rec, "")
			}
		}
		for _, s := range model.ProjectionScenarios {
			if p, ok := byScenario[s]; ok {
				rec = append(rec, strconv.FormatFloat(p.PctChange, 'f', 4, 64))
			} else {
				rec = append(rec, "")
			}
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "table: write projection %s", c.FIPS)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "table: flush projections")
}
