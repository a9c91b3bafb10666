package table

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/terrashift/climate-cli/internal/model"
)

// LoadIndicators reads a cleaned indicator CSV: COUNTY_FIPS and YEAR columns
// plus any subset of the registered indicator columns. Blank cells are
// treated as missing, not zero.
func LoadIndicators(path string) ([]model.IndicatorRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open indicators %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "table: read indicators %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("table: indicators file %s is empty", path)
	}

	cols, err := headerIndex(records[0], []string{"COUNTY_FIPS", "YEAR"})
	if err != nil {
		return nil, err
	}

	// Indicator columns present in this file.
	var present []model.Indicator
	for name := range model.IndicatorRegistry {
		if _, ok := cols[string(name)]; ok {
			present = append(present, name)
		}
	}

	var rows []model.IndicatorRow
	for i, rec := range records[1:] {
		year, err := strconv.Atoi(field(rec, cols, "YEAR"))
		if err != nil {
			return nil, eris.Wrapf(err, "table: indicators row %d YEAR", i+2)
		}
		row := model.IndicatorRow{
			FIPS:   model.PadFIPS(field(rec, cols, "COUNTY_FIPS"), 5),
			Year:   year,
			Values: make(map[model.Indicator]float64, len(present)),
		}
		for _, name := range present {
			cell := field(rec, cols, string(name))
			if cell == "" {
				continue // missing stays missing
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "table: indicators row %d %s", i+2, name)
			}
			row.Values[name] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MergeIndicators joins per-dataset indicator tables on (county, year). Later
// tables fill values the earlier ones lack; conflicting values keep the first
// seen, matching the registry's first-complete-wins discipline.
func MergeIndicators(tables ...[]model.IndicatorRow) []model.IndicatorRow {
	type key struct {
		fips string
		year int
	}
	merged := make(map[key]model.IndicatorRow)
	var order []key

	for _, rows := range tables {
		for _, row := range rows {
			k := key{row.FIPS, row.Year}
			existing, ok := merged[k]
			if !ok {
				cp := model.IndicatorRow{FIPS: row.FIPS, Year: row.Year, Values: make(map[model.Indicator]float64, len(row.Values))}
				for name, v := range row.Values {
					cp.Values[name] = v
				}
				merged[k] = cp
				order = append(order, k)
				continue
			}
			for name, v := range row.Values {
				if _, exists := existing.Values[name]; !exists {
					existing.Values[name] = v
				}
			}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].fips != order[j].fips {
			return order[i].fips < order[j].fips
		}
		return order[i].year < order[j].year
	})

	out := make([]model.IndicatorRow, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}

// SaveProjectedRows writes the combined projected indicator table: one row
// per (county, scenario) with scaled counts and derived ratios. Undefined
// ratios serialize as empty cells, never as NaN.
func SaveProjectedRows(path string, rows []model.ProjectedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "table: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	names := indicatorColumns()
	header := []string{"COUNTY_FIPS", "SCENARIO", "YEAR"}
	for _, n := range names {
		header = append(header, string(n))
	}
	header = append(header, "UNEMPLOYMENT_RATE", "AVAILABLE_HOUSING_UNITS", "STUDENT_TEACHER_RATIO", "EXCLUDED_REASON")
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "table: write projected header")
	}

	for _, row := range rows {
		rec := []string{row.FIPS, string(row.Scenario), strconv.Itoa(row.Year)}
		for _, n := range names {
			if v, ok := row.Values[n]; ok {
				rec = append(rec, formatFloat(v))
			} else {
				rec = append(rec, "")
			}
		}
		rec = append(rec, ratioCell(row.UnemploymentRate))
		rec = append(rec, formatFloat(row.AvailableHousing))
		rec = append(rec, ratioCell(row.StudentTeacherRatio))
		rec = append(rec, row.ExcludedReason)
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "table: write projected row %s/%s", row.FIPS, row.Scenario)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "table: flush projected rows")
}

// indicatorColumns returns the registered indicators in stable column order.
func indicatorColumns() []model.Indicator {
	names := make([]model.Indicator, 0, len(model.IndicatorRegistry))
	for name := range model.IndicatorRegistry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func ratioCell(r model.Ratio) string {
	v, ok := r.Value()
	if !ok {
		return ""
	}
	return formatFloat(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
