// Package census downloads ACS 5-year estimates from the Census Bureau API
// for the contiguous-state county universe and writes them as cleaned CSV
// extracts with stable column names.
package census

// VariableSet binds ACS variable codes to cleaned column names for an
// inclusive year range. Profile tables renumber variables across vintages,
// so a dataset may carry several sets.
type VariableSet struct {
	FirstYear int
	LastYear  int
	Columns   map[string]string // ACS code -> output column name
}

// Table identifies one ACS dataset family the pipeline ingests.
type Table struct {
	Name      string // output file stem, e.g. "economic"
	Path      string // API dataset path, e.g. "acs/acs5"
	FirstYear int
	LastYear  int
	Variables []VariableSet
}

// ColumnsFor returns the code-to-column mapping in effect for the given
// year, or false when the dataset has no vintage covering it.
func (t Table) ColumnsFor(year int) (map[string]string, bool) {
	for _, vs := range t.Variables {
		if year >= vs.FirstYear && year <= vs.LastYear {
			return vs.Columns, true
		}
	}
	return nil, false
}

// Tables returns the ACS datasets the pipeline downloads. Year bounds match
// the published vintages: B23006/B23025 start in 2011, the DP04 profile
// renumbered its variables in 2015.
func Tables() []Table {
	return []Table{
		{
			Name:      "population",
			Path:      "acs/acs5",
			FirstYear: 2010,
			LastYear:  2023,
			Variables: []VariableSet{
				{FirstYear: 2010, LastYear: 2023, Columns: map[string]string{
					"B01003_001E": "POPULATION",
				}},
			},
		},
		{
			Name:      "economic",
			Path:      "acs/acs5",
			FirstYear: 2011,
			LastYear:  2023,
			Variables: []VariableSet{
				{FirstYear: 2011, LastYear: 2023, Columns: map[string]string{
					"B19301_001E": "MEDIAN_INCOME",
					"B23025_003E": "TOTAL_LABOR_FORCE",
					"B23025_004E": "TOTAL_EMPLOYED_POPULATION",
					"B23025_005E": "UNEMPLOYED_PERSONS",
				}},
			},
		},
		{
			Name:      "education",
			Path:      "acs/acs5",
			FirstYear: 2011,
			LastYear:  2023,
			Variables: []VariableSet{
				{FirstYear: 2011, LastYear: 2023, Columns: map[string]string{
					"B23006_001E": "TOTAL_POPULATION_25_64",
					"B23006_007E": "LESS_THAN_HIGH_SCHOOL_UNEMPLOYED",
					"B23006_023E": "BACHELORS_OR_HIGHER",
					"B14001_002E": "TOTAL_ENROLLED",
				}},
			},
		},
		{
			Name:      "housing",
			Path:      "acs/acs5/profile",
			FirstYear: 2010,
			LastYear:  2023,
			Variables: []VariableSet{
				{FirstYear: 2010, LastYear: 2014, Columns: map[string]string{
					"DP04_0001E": "TOTAL_HOUSING_UNITS",
					"DP04_0044E": "OCCUPIED_HOUSING_UNITS",
					"DP04_0088E": "MEDIAN_HOUSING_VALUE",
					"DP04_0132E": "MEDIAN_GROSS_RENT",
				}},
				{FirstYear: 2015, LastYear: 2023, Columns: map[string]string{
					"DP04_0001E": "TOTAL_HOUSING_UNITS",
					"DP04_0002E": "OCCUPIED_HOUSING_UNITS",
					"DP04_0089E": "MEDIAN_HOUSING_VALUE",
					"DP04_0134E": "MEDIAN_GROSS_RENT",
				}},
			},
		},
	}
}
