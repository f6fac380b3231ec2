package utils

import (
	"math"
	"testing"
)

func TestClampFloat64(t *testing.T) {
	tests := []struct {
		value, min, max, expected float64
	}{
		{5.5, 0.0, 10.0, 5.5},
		{-1.5, 0.0, 10.0, 0.0},
		{15.5, 0.0, 10.0, 10.0},
	}

	for _, tt := range tests {
		if got := ClampFloat64(tt.value, tt.min, tt.max); got != tt.expected {
			t.Errorf("ClampFloat64(%f, %f, %f) = %f, expected %f", tt.value, tt.min, tt.max, got, tt.expected)
		}
	}
}

func TestApproxEqual(t *testing.T) {
	if !ApproxEqual(1.0, 1.0+1e-9, DefaultTolerance) {
		t.Error("expected values within tolerance to be equal")
	}
	if ApproxEqual(1.0, 1.1, DefaultTolerance) {
		t.Error("expected values outside tolerance to differ")
	}
	if !ApproxEqual(2, 2.5, 0.5) {
		t.Error("expected a difference equal to the tolerance to pass")
	}
	if !ApproxEqual(math.Inf(1), math.Inf(1), DefaultTolerance) {
		t.Error("expected +Inf to equal +Inf")
	}
	if ApproxEqual(math.Inf(1), 1e300, DefaultTolerance) {
		t.Error("expected +Inf to differ from a finite value")
	}
}

func TestLessOrEqual(t *testing.T) {
	if !LessOrEqual(5+1e-8, 5, DefaultTolerance) {
		t.Error("expected rounding noise to pass")
	}
	if LessOrEqual(5.1, 5, DefaultTolerance) {
		t.Error("expected 5.1 <= 5 to fail")
	}
	if !LessOrEqual(1e12, math.Inf(1), DefaultTolerance) {
		t.Error("expected unlimited bound to pass")
	}
}

func TestMeanStdDevSum(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if Mean(values) != 5 {
		t.Errorf("expected mean 5, got %f", Mean(values))
	}
	if Sum(values) != 40 {
		t.Errorf("expected sum 40, got %f", Sum(values))
	}
	// sample stddev of the classic example is sqrt(32/7)
	if math.Abs(StdDev(values)-math.Sqrt(32.0/7.0)) > 1e-12 {
		t.Errorf("unexpected stddev %f", StdDev(values))
	}
	if Mean(nil) != 0 || StdDev([]float64{1}) != 0 || Sum(nil) != 0 {
		t.Error("expected zero for empty/degenerate input")
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		percentile float64
		expected   float64
	}{
		{0, 1},
		{50, 5.5},
		{100, 10},
	}
	for _, tt := range tests {
		if got := Percentile(values, tt.percentile); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Percentile(%f) = %f, expected %f", tt.percentile, got, tt.expected)
		}
	}
	if Percentile(nil, 50) != 0 {
		t.Error("expected 0 for empty slice")
	}
}

func TestCloneMatrixIsDeep(t *testing.T) {
	src := [][]float64{{1, 2}, {3, 4}}
	dst := CloneMatrix(src)
	dst[0][0] = 99
	if src[0][0] != 1 {
		t.Fatal("CloneMatrix must not share rows")
	}
	if CloneMatrix(nil) != nil || CloneFloat64s(nil) != nil {
		t.Fatal("expected nil clones of nil input")
	}
	m := NewMatrix(3)
	if len(m) != 3 || len(m[2]) != 3 {
		t.Fatal("unexpected matrix shape")
	}
}
