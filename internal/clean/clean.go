// Package clean turns raw census county extracts into the canonical county
// registry: FIPS normalization, deterministic duplicate resolution, climate
// region assignment, and an audit trail of every row dropped along the way.
package clean

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrashift/climate-cli/internal/model"
	"github.com/terrashift/climate-cli/internal/table"
)

// excludedStates are state FIPS codes outside the contiguous-US study area:
// Alaska, Hawaii, Puerto Rico, and the Virgin Islands.
var excludedStates = map[string]string{
	"02": "Alaska",
	"15": "Hawaii",
	"72": "Puerto Rico",
	"78": "U.S. Virgin Islands",
}

// Exclusion records a county row dropped during registry construction.
type Exclusion struct {
	FIPS   string
	Name   string
	Reason string
}

// missingFields counts the optional fields a raw row failed to carry.
// Required fields are enforced earlier by the table loader.
func missingFields(r table.CountyRow) int {
	n := 0
	if r.Population2023 == 0 {
		n++
	}
	if r.GeometryWKT == "" {
		n++
	}
	if r.SourceYear == 0 {
		n++
	}
	return n
}

// ResolveDuplicate picks the survivor between two rows sharing a FIPS code.
// The row with fewer missing fields wins; on a tie the more recent source
// year wins; on a full tie the first row seen is kept.
func ResolveDuplicate(first, second table.CountyRow) table.CountyRow {
	fm, sm := missingFields(first), missingFields(second)
	if sm < fm {
		return second
	}
	if sm == fm && second.SourceYear > first.SourceYear {
		return second
	}
	return first
}

// Dedupe collapses rows sharing a county FIPS down to one survivor each,
// applying ResolveDuplicate pairwise in input order. Output is sorted by
// FIPS so repeated runs over the same input are byte-identical.
func Dedupe(rows []table.CountyRow) ([]table.CountyRow, []Exclusion) {
	log := zap.L().With(zap.String("component", "clean"))

	survivors := make(map[string]table.CountyRow, len(rows))
	var excluded []Exclusion
	for _, row := range rows {
		fips := model.PadFIPS(row.CountyFIPS, 5)
		prev, ok := survivors[fips]
		if !ok {
			row.CountyFIPS = fips
			survivors[fips] = row
			continue
		}
		row.CountyFIPS = fips
		winner := ResolveDuplicate(prev, row)
		loser := prev
		if winner == prev {
			loser = row
		}
		survivors[fips] = winner
		excluded = append(excluded, Exclusion{FIPS: fips, Name: loser.Name, Reason: "duplicate FIPS"})
		log.Warn("duplicate county row",
			zap.String("fips", fips),
			zap.String("kept", winner.Name),
			zap.String("dropped", loser.Name))
	}

	out := make([]table.CountyRow, 0, len(survivors))
	for _, row := range survivors {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CountyFIPS < out[j].CountyFIPS })
	return out, excluded
}

// BuildRegistry converts deduplicated raw rows into the canonical county
// registry. Counties in excluded states are dropped with an audit entry;
// counties whose state has no climate region mapping are dropped too, since
// every downstream step keys on region.
func BuildRegistry(rows []table.CountyRow) ([]model.County, []Exclusion, error) {
	log := zap.L().With(zap.String("component", "clean"))

	deduped, excluded := Dedupe(rows)

	counties := make([]model.County, 0, len(deduped))
	for _, row := range deduped {
		stateFIPS := model.PadFIPS(row.StateFIPS, 2)
		if state, bad := excludedStates[stateFIPS]; bad {
			excluded = append(excluded, Exclusion{FIPS: row.CountyFIPS, Name: row.Name, Reason: "outside study area: " + state})
			continue
		}

		region, ok := model.AssignRegion(row.StateName)
		if !ok {
			excluded = append(excluded, Exclusion{FIPS: row.CountyFIPS, Name: row.Name, Reason: "no climate region for state " + row.StateName})
			log.Warn("state has no climate region",
				zap.String("fips", row.CountyFIPS),
				zap.String("state", row.StateName))
			continue
		}

		c := model.County{
			FIPS:           row.CountyFIPS,
			Name:           row.Name,
			StateFIPS:      stateFIPS,
			StateName:      row.StateName,
			Region:         region,
			PopulationBase: row.Population2010,
			PopulationCur:  row.Population2023,
			GeometryWKT:    row.GeometryWKT,
		}
		if err := c.Validate(); err != nil {
			return nil, nil, eris.Wrapf(err, "clean: county %s", row.CountyFIPS)
		}
		counties = append(counties, c)
	}

	log.Info("county registry built",
		zap.Int("counties", len(counties)),
		zap.Int("excluded", len(excluded)))
	return counties, excluded, nil
}
