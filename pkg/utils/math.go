package utils

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// DefaultTolerance absorbs solver rounding when comparing quantities
const DefaultTolerance = 1e-6

// ClampFloat64 clamps a float64 value between min and max
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ApproxEqual reports whether a and b differ by at most tol
func ApproxEqual(a, b, tol float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return scalar.EqualWithinAbs(a, b, tol)
}

// LessOrEqual reports whether a <= b within tol. +Inf bounds always pass.
func LessOrEqual(a, b, tol float64) bool {
	if math.IsInf(b, 1) {
		return true
	}
	return a <= b+tol
}

// Mean calculates the mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Sum calculates the sum of a slice of float64 values
func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// Percentile calculates the percentile of a slice of float64 values.
// percentile should be between 0 and 100
func Percentile(values []float64, percentile float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := (percentile / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// CloneFloat64s returns a copy of a slice
func CloneFloat64s(values []float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// CloneMatrix returns a deep copy of a square or ragged slice of slices
func CloneMatrix(values [][]float64) [][]float64 {
	if values == nil {
		return nil
	}
	out := make([][]float64, len(values))
	for i, row := range values {
		out[i] = CloneFloat64s(row)
	}
	return out
}

// NewMatrix allocates an n x n zero matrix
func NewMatrix(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	return out
}
