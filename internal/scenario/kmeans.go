package scenario

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Reducer clusters raw samples into at most Clusters representative
// scenarios weighted by cluster share.
type Reducer struct {
	Clusters   int
	Iterations int
}

// Reduce runs k-means++ seeding followed by Lloyd iterations. Empty
// clusters are dropped. With no more samples than clusters every sample
// becomes its own scenario.
func (r Reducer) Reduce(rng *utils.RandSource, samples [][]float64) (*Set, error) {
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	dim := len(samples[0])
	for i, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("%w: sample %d has %d prices, expected %d", ErrDimension, i, len(s), dim)
		}
	}
	if r.Clusters <= 0 {
		return nil, fmt.Errorf("cluster count must be positive, got %d", r.Clusters)
	}
	if len(samples) <= r.Clusters {
		return Uniform(samples)
	}

	centroids := seedCentroids(rng, samples, r.Clusters)
	assign := make([]int, len(samples))
	for i := range assign {
		assign[i] = -1
	}

	iterations := r.Iterations
	if iterations <= 0 {
		iterations = 1
	}
	for it := 0; it < iterations; it++ {
		changed := false
		for i, s := range samples {
			c := nearest(centroids, s)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		recompute(centroids, samples, assign)
		if !changed {
			break
		}
	}

	counts := make([]int, len(centroids))
	for _, c := range assign {
		counts[c]++
	}

	var prices [][]float64
	var weights []float64
	for c, n := range counts {
		if n == 0 {
			continue
		}
		prices = append(prices, centroids[c])
		weights = append(weights, float64(n)/float64(len(samples)))
	}
	return New(prices, weights)
}

// seedCentroids picks k initial centroids with the k-means++ rule
func seedCentroids(rng *utils.RandSource, samples [][]float64, k int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, utils.CloneFloat64s(samples[rng.Intn(len(samples))]))

	dist := make([]float64, len(samples))
	for len(centroids) < k {
		for i, s := range samples {
			d := floats.Distance(s, centroids[nearest(centroids, s)], 2)
			dist[i] = d * d
		}
		total := floats.Sum(dist)
		if total == 0 {
			// every sample coincides with a centroid
			centroids = append(centroids, utils.CloneFloat64s(samples[rng.Intn(len(samples))]))
			continue
		}
		target := rng.Float64() * total
		pick := len(samples) - 1
		for i, d := range dist {
			target -= d
			if target < 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, utils.CloneFloat64s(samples[pick]))
	}
	return centroids
}

func nearest(centroids [][]float64, s []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(s, centroid, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recompute moves each non-empty centroid to the mean of its members
func recompute(centroids, samples [][]float64, assign []int) {
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, len(centroids[c]))
	}
	for i, s := range samples {
		c := assign[i]
		floats.Add(sums[c], s)
		counts[c]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		copy(centroids[c], sums[c])
	}
}
