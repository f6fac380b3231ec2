// Package scenario holds weighted sets of next-period price scenarios and
// the sampling and k-means reduction that produce them.
package scenario

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// WeightTolerance bounds how far scenario weights may sum away from one
const WeightTolerance = 1e-9

var (
	// ErrEmpty is returned when a set would hold no scenarios
	ErrEmpty = errors.New("scenario set is empty")
	// ErrInvalidWeights is returned for mismatched or non-normalised weights
	ErrInvalidWeights = errors.New("invalid scenario weights")
	// ErrDimension is returned when price vectors differ in length
	ErrDimension = errors.New("scenario dimension mismatch")
)

// Set is an immutable list of price vectors with probability weights
type Set struct {
	prices  [][]float64
	weights []float64
}

// New validates and builds a scenario set. Weights must match the number of
// scenarios, be non-negative and sum to one within WeightTolerance.
func New(prices [][]float64, weights []float64) (*Set, error) {
	if len(prices) == 0 {
		return nil, ErrEmpty
	}
	if len(weights) != len(prices) {
		return nil, fmt.Errorf("%w: %d weights for %d scenarios", ErrInvalidWeights, len(weights), len(prices))
	}

	dim := len(prices[0])
	for i, p := range prices {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: scenario %d has %d prices, expected %d", ErrDimension, i, len(p), dim)
		}
		for w, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("scenario %d: price %d is not finite", i, w)
			}
		}
	}
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %d is %g", ErrInvalidWeights, i, w)
		}
	}
	if sum := floats.Sum(weights); math.Abs(sum-1) > WeightTolerance {
		return nil, fmt.Errorf("%w: weights sum to %.12g", ErrInvalidWeights, sum)
	}

	s := &Set{
		prices:  make([][]float64, len(prices)),
		weights: append([]float64(nil), weights...),
	}
	for i, p := range prices {
		s.prices[i] = append([]float64(nil), p...)
	}
	return s, nil
}

// Uniform builds a set with equal weights
func Uniform(prices [][]float64) (*Set, error) {
	if len(prices) == 0 {
		return nil, ErrEmpty
	}
	weights := make([]float64, len(prices))
	for i := range weights {
		weights[i] = 1 / float64(len(prices))
	}
	return New(prices, weights)
}

// Deterministic builds a single-scenario set with weight one
func Deterministic(prices []float64) *Set {
	return &Set{
		prices:  [][]float64{append([]float64(nil), prices...)},
		weights: []float64{1},
	}
}

// Len returns the number of scenarios
func (s *Set) Len() int {
	return len(s.prices)
}

// Dim returns the number of prices per scenario
func (s *Set) Dim() int {
	return len(s.prices[0])
}

// Prices returns a copy of scenario i
func (s *Set) Prices(i int) []float64 {
	return append([]float64(nil), s.prices[i]...)
}

// Price returns the price of warehouse w in scenario i
func (s *Set) Price(i, w int) float64 {
	return s.prices[i][w]
}

// Weight returns the probability of scenario i
func (s *Set) Weight(i int) float64 {
	return s.weights[i]
}

// Mean returns the probability-weighted mean price vector
func (s *Set) Mean() []float64 {
	mean := make([]float64, s.Dim())
	for i, p := range s.prices {
		floats.AddScaled(mean, s.weights[i], p)
	}
	return mean
}
