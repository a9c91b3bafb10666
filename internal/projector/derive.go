package projector

import "github.com/terrashift/climate-cli/internal/model"

// derive computes the ratio metrics of a projected row after scaling, never
// before. base holds the unscaled base-year values for indicators that stay
// fixed through projection (teacher counts, the housing stock).
func derive(row model.ProjectedRow, base map[model.Indicator]float64) model.ProjectedRow {
	row.UnemploymentRate = unemploymentRate(
		row.Values[model.IndEmployed],
		row.Values[model.IndLaborForce],
	)

	// The housing stock is held at its base-year level while occupancy
	// scales with migration, so in-migration can push availability
	// negative: a shortage signal, not an error, and never clamped.
	row.AvailableHousing = base[model.IndTotalHousing] - row.Values[model.IndOccupiedHousing]

	// Teacher counts are a fixed-year survey value; the ratio divides the
	// scaled student count by the base-year staffing level.
	row.StudentTeacherRatio = model.Divide(
		row.Values[model.IndStudents],
		base[model.IndTeachers],
	)

	return row
}

// unemploymentRate returns 100 - employed/laborForce*100, undefined when the
// labor force is zero.
func unemploymentRate(employed, laborForce float64) model.Ratio {
	employedPct := model.Divide(employed*100, laborForce)
	pct, ok := employedPct.Value()
	if !ok {
		return model.UndefinedRatio()
	}
	return model.DefinedRatio(100 - pct)
}
