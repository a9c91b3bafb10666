package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrashift/climate-cli/internal/model"
	"github.com/terrashift/climate-cli/internal/table"
)

func rawCounty(fips, name, stateFIPS, stateName string) table.CountyRow {
	return table.CountyRow{
		CountyFIPS:     fips,
		Name:           name,
		StateFIPS:      stateFIPS,
		StateName:      stateName,
		Population2010: 100000,
		Population2023: 110000,
		SourceYear:     2023,
	}
}

func TestResolveDuplicate(t *testing.T) {
	t.Parallel()

	complete := rawCounty("36029", "Erie County", "36", "New York")
	sparse := complete
	sparse.Population2023 = 0
	sparse.SourceYear = 0

	older := complete
	older.SourceYear = 2020
	older.Name = "Erie County (2020)"

	tests := []struct {
		name   string
		first  table.CountyRow
		second table.CountyRow
		want   string
	}{
		{"fewest missing fields wins", sparse, complete, "Erie County"},
		{"order does not change winner", complete, sparse, "Erie County"},
		{"tie goes to newer source year", older, complete, "Erie County"},
		{"full tie keeps first", complete, complete, "Erie County"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveDuplicate(tt.first, tt.second)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	complete := rawCounty("36029", "Erie County", "36", "New York")
	sparse := complete
	sparse.Name = "Erie County (partial)"
	sparse.Population2023 = 0

	rows := []table.CountyRow{
		sparse,
		rawCounty("48201", "Harris County", "48", "Texas"),
		complete,
	}

	deduped, excluded := Dedupe(rows)
	require.Len(t, deduped, 2)
	require.Len(t, excluded, 1)

	// Sorted by FIPS, complete row survives.
	assert.Equal(t, "36029", deduped[0].CountyFIPS)
	assert.Equal(t, "Erie County", deduped[0].Name)
	assert.Equal(t, "48201", deduped[1].CountyFIPS)

	assert.Equal(t, "36029", excluded[0].FIPS)
	assert.Equal(t, "Erie County (partial)", excluded[0].Name)
	assert.Equal(t, "duplicate FIPS", excluded[0].Reason)
}

func TestDedupePadsFIPS(t *testing.T) {
	t.Parallel()

	rows := []table.CountyRow{rawCounty("6037", "Los Angeles County", "6", "California")}
	deduped, excluded := Dedupe(rows)
	require.Len(t, deduped, 1)
	assert.Empty(t, excluded)
	assert.Equal(t, "06037", deduped[0].CountyFIPS)
}

func TestBuildRegistry(t *testing.T) {
	t.Parallel()

	rows := []table.CountyRow{
		rawCounty("36029", "Erie County", "36", "New York"),
		rawCounty("02020", "Anchorage", "02", "Alaska"),
		rawCounty("15003", "Honolulu", "15", "Hawaii"),
		rawCounty("72127", "San Juan", "72", "Puerto Rico"),
		rawCounty("66010", "Guam", "66", "Guam"),
		rawCounty("11001", "District of Columbia", "11", "District of Columbia"),
	}

	counties, excluded, err := BuildRegistry(rows)
	require.NoError(t, err)
	require.Len(t, counties, 2)
	require.Len(t, excluded, 4)

	assert.Equal(t, "11001", counties[0].FIPS)
	assert.Equal(t, model.RegionSouth, counties[0].Region)
	assert.Equal(t, "36029", counties[1].FIPS)
	assert.Equal(t, model.RegionNortheast, counties[1].Region)
	assert.Equal(t, int64(100000), counties[1].PopulationBase)
	assert.Equal(t, int64(110000), counties[1].PopulationCur)

	reasons := make(map[string]string)
	for _, e := range excluded {
		reasons[e.FIPS] = e.Reason
	}
	assert.Equal(t, "outside study area: Alaska", reasons["02020"])
	assert.Equal(t, "outside study area: Hawaii", reasons["15003"])
	assert.Equal(t, "outside study area: Puerto Rico", reasons["72127"])
	assert.Equal(t, "no climate region for state Guam", reasons["66010"])
}

func TestBuildRegistryDeterministic(t *testing.T) {
	t.Parallel()

	rows := []table.CountyRow{
		rawCounty("48201", "Harris County", "48", "Texas"),
		rawCounty("36029", "Erie County", "36", "New York"),
		rawCounty("06037", "Los Angeles County", "06", "California"),
	}

	first, _, err := BuildRegistry(rows)
	require.NoError(t, err)
	second, _, err := BuildRegistry(rows)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].FIPS, first[i].FIPS)
	}
}
