package model

// Indicator names a raw socioeconomic measurement column. Names match the
// cleaned-table column headers so CSV round-trips stay mechanical.
type Indicator string

const (
	IndLaborForce       Indicator = "TOTAL_LABOR_FORCE"
	IndEmployed         Indicator = "TOTAL_EMPLOYED_POPULATION"
	IndMedianIncome     Indicator = "MEDIAN_INCOME"
	IndOccupiedHousing  Indicator = "OCCUPIED_HOUSING_UNITS"
	IndTotalHousing     Indicator = "TOTAL_HOUSING_UNITS"
	IndMedianHomeValue  Indicator = "MEDIAN_HOUSING_VALUE"
	IndMedianGrossRent  Indicator = "MEDIAN_GROSS_RENT"
	IndHousingBurden    Indicator = "HOUSE_AFFORDABILITY"
	IndStudents         Indicator = "PUBLIC_SCHOOL_STUDENTS"
	IndTeachers         Indicator = "PUBLIC_SCHOOL_TEACHERS"
	IndEnrolled         Indicator = "TOTAL_ENROLLED"
	IndBachelors        Indicator = "BACHELORS_OR_HIGHER"
	IndLessHSUnemployed Indicator = "LESS_THAN_HIGH_SCHOOL_UNEMPLOYED"
	IndCrimeCount       Indicator = "CRIMINAL_ACTIVITIES"
	IndJobOpenings      Indicator = "JOB_OPENINGS_TOTAL"
)

// Category groups indicators for composite-index scoring.
type Category string

const (
	CategoryCrime     Category = "crime"
	CategoryEconomic  Category = "economic"
	CategoryEducation Category = "education"
	CategoryHousing   Category = "housing"
	CategoryJobs      Category = "jobs"
)

// Categories lists all index categories in stable output order.
var Categories = []Category{
	CategoryCrime, CategoryEconomic, CategoryEducation, CategoryHousing, CategoryJobs,
}

// IndicatorMeta describes how an indicator behaves through the pipeline.
type IndicatorMeta struct {
	// Scalable indicators move proportionally with population. Fixed
	// values (teacher counts, price medians, the housing stock) keep
	// their base-year value through projection.
	Scalable bool
	// Invert flips the normalized value so that higher always means
	// better in composite indices.
	Invert   bool
	Category Category
}

// IndicatorRegistry is the closed set of raw indicators the pipeline knows.
var IndicatorRegistry = map[Indicator]IndicatorMeta{
	IndLaborForce:       {Scalable: true, Category: CategoryEconomic},
	IndEmployed:         {Scalable: true, Category: CategoryEconomic},
	IndMedianIncome:     {Scalable: false, Category: CategoryEconomic},
	IndOccupiedHousing:  {Scalable: true, Category: CategoryHousing},
	IndTotalHousing:     {Scalable: false, Category: CategoryHousing},
	IndMedianHomeValue:  {Scalable: false, Category: CategoryHousing},
	IndMedianGrossRent:  {Scalable: false, Category: CategoryHousing},
	IndHousingBurden:    {Scalable: false, Invert: true, Category: CategoryHousing},
	IndStudents:         {Scalable: true, Category: CategoryEducation},
	IndTeachers:         {Scalable: false, Category: CategoryEducation},
	IndEnrolled:         {Scalable: true, Category: CategoryEducation},
	IndBachelors:        {Scalable: true, Category: CategoryEducation},
	IndLessHSUnemployed: {Scalable: true, Invert: true, Category: CategoryEducation},
	IndCrimeCount:       {Scalable: true, Invert: true, Category: CategoryCrime},
	IndJobOpenings:      {Scalable: true, Category: CategoryJobs},
}

// Ratio is an explicitly optional ratio value. An undefined ratio (zero
// denominator) is a distinguishable state from a ratio that computed to zero,
// so it can be carried to index computation as an exclusion instead of a NaN
// poisoning a mean.
type Ratio struct {
	value   float64
	defined bool
}

// DefinedRatio wraps a computed ratio value.
func DefinedRatio(v float64) Ratio { return Ratio{value: v, defined: true} }

// UndefinedRatio marks a ratio whose denominator was zero.
func UndefinedRatio() Ratio { return Ratio{} }

// Divide computes num/den as a Ratio, undefined when den is zero.
func Divide(num, den float64) Ratio {
	if den == 0 {
		return UndefinedRatio()
	}
	return DefinedRatio(num / den)
}

// Defined reports whether the ratio carries a value.
func (r Ratio) Defined() bool { return r.defined }

// Value returns the ratio value and whether it is defined.
func (r Ratio) Value() (float64, bool) { return r.value, r.defined }

// IndicatorRow is one county/year observation of raw indicator counts.
type IndicatorRow struct {
	FIPS   string                `json:"fips"`
	Year   int                   `json:"year"`
	Values map[Indicator]float64 `json:"values"`
}

// ProjectedRow is one (county, scenario) row of the combined projected
// indicator table: scaled raw counts plus the unemployment, housing
// availability, and student-teacher metrics derived after scaling.
type ProjectedRow struct {
	FIPS     string                `json:"fips"`
	Scenario Scenario              `json:"scenario"`
	Year     int                   `json:"year"`
	Values   map[Indicator]float64 `json:"values"`

	UnemploymentRate    Ratio   `json:"-"`
	StudentTeacherRatio Ratio   `json:"-"`
	AvailableHousing    float64 `json:"available_housing_units"` // negative signals a shortage

	// ExcludedReason is the audit trail set when the row is dropped from
	// downstream index computation. The row itself is retained.
	ExcludedReason string `json:"excluded_reason,omitempty"`
}
