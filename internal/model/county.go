package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// County is one row of the county registry: identity, region assignment, and
// year-stamped populations. Counties are immutable for the lifetime of a
// pipeline run.
type County struct {
	FIPS           string        `json:"fips"`       // 5-digit zero-padded
	Name           string        `json:"name"`       // display name, e.g. "Erie County, New York"
	StateFIPS      string        `json:"state_fips"` // first 2 digits of FIPS
	StateName      string        `json:"state_name"`
	Region         ClimateRegion `json:"region"`
	PopulationBase int64         `json:"population_base"`   // baseline year (2010)
	PopulationCur  int64         `json:"population_actual"` // most recent actual year (2023)
	GeometryWKT    string        `json:"geometry_wkt,omitempty"`
}

// PadFIPS left-pads a FIPS fragment with zeros to the given width.
func PadFIPS(code string, width int) string {
	code = strings.TrimSpace(code)
	if len(code) >= width {
		return code
	}
	return strings.Repeat("0", width-len(code)) + code
}

// CountyFIPS builds a 5-digit county FIPS from state and county fragments.
func CountyFIPS(stateFIPS, countyFIPS string) string {
	return PadFIPS(stateFIPS, 2) + PadFIPS(countyFIPS, 3)
}

// Validate checks the structural invariants of a registry row.
func (c County) Validate() error {
	if len(c.FIPS) != 5 {
		return eris.Errorf("county: FIPS %q must be 5 digits", c.FIPS)
	}
	if c.StateFIPS != "" && !strings.HasPrefix(c.FIPS, c.StateFIPS) {
		return eris.Errorf("county %s: state FIPS %q is not a prefix", c.FIPS, c.StateFIPS)
	}
	if c.PopulationBase < 0 || c.PopulationCur < 0 {
		return eris.Errorf("county %s: negative population", c.FIPS)
	}
	return nil
}
