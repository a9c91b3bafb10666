package geo

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// stateNames maps state FIPS codes to full state names, as carried in the
// registry's STATE_NAME column. Territories are included so their rows can
// be excluded by name downstream instead of silently dropped here.
var stateNames = map[string]string{
	"01": "Alabama", "02": "Alaska", "04": "Arizona", "05": "Arkansas",
	"06": "California", "08": "Colorado", "09": "Connecticut", "10": "Delaware",
	"11": "District of Columbia", "12": "Florida", "13": "Georgia", "15": "Hawaii",
	"16": "Idaho", "17": "Illinois", "18": "Indiana", "19": "Iowa",
	"20": "Kansas", "21": "Kentucky", "22": "Louisiana", "23": "Maine",
	"24": "Maryland", "25": "Massachusetts", "26": "Michigan", "27": "Minnesota",
	"28": "Mississippi", "29": "Missouri", "30": "Montana", "31": "Nebraska",
	"32": "Nevada", "33": "New Hampshire", "34": "New Jersey", "35": "New Mexico",
	"36": "New York", "37": "North Carolina", "38": "North Dakota", "39": "Ohio",
	"40": "Oklahoma", "41": "Oregon", "42": "Pennsylvania", "44": "Rhode Island",
	"45": "South Carolina", "46": "South Dakota", "47": "Tennessee", "48": "Texas",
	"49": "Utah", "50": "Vermont", "51": "Virginia", "53": "Washington",
	"54": "West Virginia", "55": "Wisconsin", "56": "Wyoming",
	"60": "American Samoa", "66": "Guam", "69": "Northern Mariana Islands",
	"72": "Puerto Rico", "78": "U.S. Virgin Islands",
}

// StateName resolves a state FIPS code to its full name, returning the code
// itself when unknown so the row stays traceable.
func StateName(stateFIPS string) string {
	if name, ok := stateNames[stateFIPS]; ok {
		return name
	}
	return stateFIPS
}

// WriteRawCounties joins county boundaries with base- and current-year
// population lookups and writes the raw registry CSV consumed by the clean
// stage. Counties without a population record are written with zero counts;
// the clean stage decides how to treat incomplete rows.
func WriteRawCounties(path string, shapes []CountyShape, popBase, popCur map[string]int64, sourceYear int) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "geo: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	header := []string{"COUNTY_FIPS", "NAME", "STATE_FIPS", "STATE_NAME", "POPULATION_2010", "POPULATION_2023", "GEOMETRY", "SOURCE_YEAR"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "geo: write header")
	}

	missing := 0
	for _, s := range shapes {
		base, okBase := popBase[s.GEOID]
		cur, okCur := popCur[s.GEOID]
		if !okBase || !okCur {
			missing++
		}
		rec := []string{
			s.GEOID, s.Name, s.StateFIPS, StateName(s.StateFIPS),
			strconv.FormatInt(base, 10), strconv.FormatInt(cur, 10),
			s.WKT, strconv.Itoa(sourceYear),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "geo: write county %s", s.GEOID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "geo: flush counties")
	}

	zap.L().Info("raw county registry written",
		zap.String("path", path),
		zap.Int("counties", len(shapes)),
		zap.Int("without_population", missing),
	)
	return nil
}
