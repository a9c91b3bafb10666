// Package index computes normalized socioeconomic category scores, weighted
// composite indices, and county rankings from the projected indicator table.
package index

import "math"

// Method selects the standardization applied before scoring.
type Method string

const (
	// MethodMinMax scales each indicator to [0,1] across the full
	// cross-county, cross-scenario dataset.
	MethodMinMax Method = "minmax"
	// MethodZScore standardizes to mean 0, standard deviation 1.
	MethodZScore Method = "zscore"
)

// minMax returns values scaled to the unit interval. A constant column
// scales to all zeros rather than dividing by zero.
func minMax(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(values))
	if hi == lo {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// zScore returns values standardized to mean 0, population standard
// deviation 1. A constant column standardizes to all zeros.
func zScore(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(values)))

	out := make([]float64, len(values))
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// normalize applies the chosen method and flips higher-is-worse columns so
// that higher always means better: 1-x for min-max, sign flip for z-scores.
func normalize(values []float64, method Method, invert bool) []float64 {
	var out []float64
	switch method {
	case MethodZScore:
		out = zScore(values)
		if invert {
			for i := range out {
				out[i] = -out[i]
			}
		}
	default:
		out = minMax(values)
		if invert {
			for i := range out {
				out[i] = 1 - out[i]
			}
		}
	}
	return out
}
