// Package table reads and writes the flat CSV tables at each pipeline stage
// boundary: the county registry, indicator tables, and the projected output
// tables consumed by the storage and presentation layers.
package table

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/terrashift/climate-cli/internal/model"
)

// CountyRow is one raw row of the county registry extract.
type CountyRow struct {
	StateFIPS      string
	CountyFIPS     string // 3-digit fragment or full 5-digit code
	Name           string
	StateName      string
	Population2010 int64
	Population2023 int64
	GeometryWKT    string
	SourceYear     int // year of the source file, used by duplicate resolution
}

// LoadCounties reads a county registry CSV. Header order is fixed; FIPS
// codes are kept as strings to preserve leading zeros.
func LoadCounties(path string) ([]CountyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open counties %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "table: read counties %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("table: counties file %s is empty", path)
	}

	cols, err := headerIndex(records[0], []string{"COUNTY_FIPS", "NAME", "STATE_FIPS", "STATE_NAME", "POPULATION_2010"})
	if err != nil {
		return nil, err
	}

	var rows []CountyRow
	for i, rec := range records[1:] {
		row := CountyRow{
			CountyFIPS: field(rec, cols, "COUNTY_FIPS"),
			Name:       field(rec, cols, "NAME"),
			StateFIPS:  field(rec, cols, "STATE_FIPS"),
			StateName:  field(rec, cols, "STATE_NAME"),
		}
		if row.Population2010, err = intField(rec, cols, "POPULATION_2010"); err != nil {
			return nil, eris.Wrapf(err, "table: counties row %d", i+2)
		}
		// Optional columns.
		if v := field(rec, cols, "POPULATION_2023"); v != "" {
			if row.Population2023, err = strconv.ParseInt(v, 10, 64); err != nil {
				return nil, eris.Wrapf(err, "table: counties row %d POPULATION_2023", i+2)
			}
		}
		row.GeometryWKT = field(rec, cols, "GEOMETRY")
		if v := field(rec, cols, "SOURCE_YEAR"); v != "" {
			if row.SourceYear, err = strconv.Atoi(v); err != nil {
				return nil, eris.Wrapf(err, "table: counties row %d SOURCE_YEAR", i+2)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SaveCounties writes the registry back out, normalized.
func SaveCounties(path string, counties []model.County) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "table: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"COUNTY_FIPS", "NAME", "STATE_FIPS", "STATE_NAME", "CLIMATE_REGION", "POPULATION_2010", "POPULATION_2023", "GEOMETRY"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "table: write counties header")
	}
	for _, c := range counties {
		rec := []string{
			c.FIPS, c.Name, c.StateFIPS, c.StateName, string(c.Region),
			strconv.FormatInt(c.PopulationBase, 10),
			strconv.FormatInt(c.PopulationCur, 10),
			c.GeometryWKT,
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "table: write county %s", c.FIPS)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "table: flush counties")
}

// headerIndex maps column names to positions and checks required columns.
func headerIndex(header []string, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, eris.Errorf("table: missing required column %q", name)
		}
	}
	return cols, nil
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func intField(rec []string, cols map[string]int, name string) (int64, error) {
	v := field(rec, cols, name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %s", name)
	}
	return n, nil
}
