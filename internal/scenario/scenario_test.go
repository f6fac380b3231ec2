package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/process"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

func TestNewValidatesWeights(t *testing.T) {
	prices := [][]float64{{1, 2}, {3, 4}}

	_, err := New(prices, []float64{0.5})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = New(prices, []float64{0.5, 0.6})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = New(prices, []float64{1.5, -0.5})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = New(nil, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = New([][]float64{{1, 2}, {3}}, []float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrDimension)

	s, err := New(prices, []float64{0.25, 0.75})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Dim())
	assert.Equal(t, 0.75, s.Weight(1))
	assert.Equal(t, 3.0, s.Price(1, 0))
	assert.Equal(t, []float64{2.5, 3.5}, s.Mean())
}

func TestNewAcceptsRoundingNoise(t *testing.T) {
	_, err := New([][]float64{{1}, {2}, {3}}, []float64{1.0 / 3, 1.0 / 3, 1.0/3 + 1e-12})
	assert.NoError(t, err)
}

func TestSetIsImmutable(t *testing.T) {
	prices := [][]float64{{1, 2}}
	s, err := Uniform(prices)
	require.NoError(t, err)

	prices[0][0] = 100
	got := s.Prices(0)
	got[1] = 200
	assert.Equal(t, []float64{1, 2}, s.Prices(0))
}

func TestDeterministic(t *testing.T) {
	s := Deterministic([]float64{4, 5})
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1.0, s.Weight(0))
	assert.Equal(t, []float64{4, 5}, s.Mean())
}

func TestReduceSeparatesClusters(t *testing.T) {
	rng := utils.NewRandSource(7)
	var samples [][]float64
	for i := 0; i < 30; i++ {
		samples = append(samples, []float64{10 + rng.UniformFloat64(-0.5, 0.5), 10})
	}
	for i := 0; i < 70; i++ {
		samples = append(samples, []float64{50 + rng.UniformFloat64(-0.5, 0.5), 50})
	}

	set, err := Reducer{Clusters: 2, Iterations: 50}.Reduce(utils.NewRandSource(1), samples)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	for i := 0; i < set.Len(); i++ {
		if set.Price(i, 1) < 30 {
			assert.InDelta(t, 0.3, set.Weight(i), 1e-12)
			assert.InDelta(t, 10, set.Price(i, 0), 0.5)
		} else {
			assert.InDelta(t, 0.7, set.Weight(i), 1e-12)
			assert.InDelta(t, 50, set.Price(i, 0), 0.5)
		}
	}
}

func TestReducePreservesMean(t *testing.T) {
	rng := utils.NewRandSource(3)
	samples := make([][]float64, 200)
	for i := range samples {
		samples[i] = []float64{rng.NormFloat64(35, 5), rng.NormFloat64(20, 2)}
	}
	raw, err := Uniform(samples)
	require.NoError(t, err)

	set, err := Reducer{Clusters: 8, Iterations: 100}.Reduce(utils.NewRandSource(4), samples)
	require.NoError(t, err)
	assert.LessOrEqual(t, set.Len(), 8)

	// centroids weighted by cluster share reproduce the sample mean
	want, got := raw.Mean(), set.Mean()
	for w := range want {
		assert.InDelta(t, want[w], got[w], 1e-6)
	}
}

func TestReduceSmallSampleIsUniform(t *testing.T) {
	set, err := Reducer{Clusters: 5, Iterations: 10}.Reduce(utils.NewRandSource(1), [][]float64{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.InDelta(t, 1.0/3, set.Weight(0), 1e-12)
}

func TestReduceErrors(t *testing.T) {
	_, err := Reducer{Clusters: 2}.Reduce(utils.NewRandSource(1), nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Reducer{Clusters: 0}.Reduce(utils.NewRandSource(1), [][]float64{{1}})
	assert.Error(t, err)

	_, err = Reducer{Clusters: 1}.Reduce(utils.NewRandSource(1), [][]float64{{1}, {1, 2}})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestReduceIdenticalSamples(t *testing.T) {
	samples := make([][]float64, 20)
	for i := range samples {
		samples[i] = []float64{7, 7}
	}
	set, err := Reducer{Clusters: 4, Iterations: 10}.Reduce(utils.NewRandSource(1), samples)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.InDeltaSlice(t, []float64{7, 7}, set.Mean(), 1e-12)
}

func TestGenerator(t *testing.T) {
	g := &Generator{
		Market: &process.Market{Price: process.PriceModel{
			Mean: 35, Reversion: 0.12, Momentum: 0.6, NoiseStdDev: 1, Cap: 90,
		}},
		Samples: 50,
		Reducer: Reducer{Clusters: 5, Iterations: 20},
	}
	state := process.State{Prices: []float64{35, 30}, PreviousPrices: []float64{35, 30}}

	a, err := g.Generate(utils.NewRandSource(9), state)
	require.NoError(t, err)
	b, err := g.Generate(utils.NewRandSource(9), state)
	require.NoError(t, err)
	assert.Equal(t, a.Mean(), b.Mean())
	assert.LessOrEqual(t, a.Len(), 5)

	mean, err := g.SampleMean(utils.NewRandSource(9), state)
	require.NoError(t, err)
	assert.Equal(t, 1, mean.Len())
	assert.Equal(t, 2, mean.Dim())
}
