// Package model defines the core value types shared across the projection
// pipeline: counties, climate regions, scenarios, and indicator tables.
package model

import "strings"

// ClimateRegion is one of the five coarse U.S. groupings used as the unit of
// regional population-share modeling.
type ClimateRegion string

const (
	RegionNortheast  ClimateRegion = "Northeast"
	RegionSouth      ClimateRegion = "South"
	RegionMidwest    ClimateRegion = "Midwest"
	RegionWest       ClimateRegion = "West"
	RegionCalifornia ClimateRegion = "California"

	// RegionUnknown marks counties whose state is outside the analysis
	// universe. They are excluded from aggregation, never defaulted.
	RegionUnknown ClimateRegion = ""
)

// Regions lists all valid climate regions in stable output order.
var Regions = []ClimateRegion{
	RegionNortheast,
	RegionSouth,
	RegionMidwest,
	RegionWest,
	RegionCalifornia,
}

// Valid reports whether r is one of the five known regions.
func (r ClimateRegion) Valid() bool {
	switch r {
	case RegionNortheast, RegionSouth, RegionMidwest, RegionWest, RegionCalifornia:
		return true
	}
	return false
}

// stateRegions maps lowercase full state names to climate regions. It covers
// the 48 contiguous states plus the District of Columbia; Alaska, Hawaii,
// Puerto Rico, and the territories are deliberately absent.
var stateRegions = map[string]ClimateRegion{
	"pennsylvania":  RegionNortheast,
	"new jersey":    RegionNortheast,
	"new york":      RegionNortheast,
	"connecticut":   RegionNortheast,
	"rhode island":  RegionNortheast,
	"massachusetts": RegionNortheast,
	"new hampshire": RegionNortheast,
	"vermont":       RegionNortheast,
	"maine":         RegionNortheast,

	"district of columbia": RegionSouth,
	"maryland":             RegionSouth,
	"delaware":             RegionSouth,
	"virginia":             RegionSouth,
	"west virginia":        RegionSouth,
	"kentucky":             RegionSouth,
	"north carolina":       RegionSouth,
	"south carolina":       RegionSouth,
	"tennessee":            RegionSouth,
	"alabama":              RegionSouth,
	"georgia":              RegionSouth,
	"florida":              RegionSouth,
	"arkansas":             RegionSouth,
	"mississippi":          RegionSouth,
	"louisiana":            RegionSouth,
	"oklahoma":             RegionSouth,
	"texas":                RegionSouth,

	"montana":      RegionMidwest,
	"wyoming":      RegionMidwest,
	"north dakota": RegionMidwest,
	"south dakota": RegionMidwest,
	"nebraska":     RegionMidwest,
	"kansas":       RegionMidwest,
	"minnesota":    RegionMidwest,
	"iowa":         RegionMidwest,
	"missouri":     RegionMidwest,
	"wisconsin":    RegionMidwest,
	"illinois":     RegionMidwest,
	"michigan":     RegionMidwest,
	"indiana":      RegionMidwest,
	"ohio":         RegionMidwest,

	"washington": RegionWest,
	"oregon":     RegionWest,
	"idaho":      RegionWest,
	"nevada":     RegionWest,
	"utah":       RegionWest,
	"colorado":   RegionWest,
	"arizona":    RegionWest,
	"new mexico": RegionWest,

	"california": RegionCalifornia,
}

// AssignRegion resolves a full state name (case-insensitive) to its climate
// region. ok is false for states outside the contiguous-48+DC universe;
// callers must drop such counties from regional aggregation.
func AssignRegion(stateName string) (ClimateRegion, bool) {
	r, ok := stateRegions[strings.ToLower(strings.TrimSpace(stateName))]
	if !ok {
		return RegionUnknown, false
	}
	return r, true
}
