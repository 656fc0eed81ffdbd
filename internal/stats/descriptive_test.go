package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
	}{
		{
			name:     "empty slice",
			data:     nil,
			expected: 0,
		},
		{
			name:     "single value",
			data:     []float64{42.5},
			expected: 42.5,
		},
		{
			name:     "several values",
			data:     []float64{1, 2, 3, 4, 5},
			expected: 3,
		},
		{
			name:     "negative values",
			data:     []float64{-2, 2, -4, 4},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Mean(tt.data), 1e-12)
		})
	}
}

func TestVariance(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 2.0, Variance(data, 0), 1e-12, "population variance")
	assert.InDelta(t, 2.5, Variance(data, 1), 1e-12, "sample variance")
	assert.Equal(t, 0.0, Variance([]float64{7}, 1), "single observation with ddof 1")
	assert.Equal(t, 0.0, Variance(nil, 0), "empty slice")
}

func TestStdDev(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, math.Sqrt(2.0), StdDev(data, 0), 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), StdDev(data, 1), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{3, 3, 3}, 1), "constant series")
}

func TestZScore(t *testing.T) {
	z, ok := ZScore(12, 10, 2)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, z, 1e-12)

	z, ok = ZScore(7, 10, 2)
	assert.True(t, ok)
	assert.InDelta(t, -1.5, z, 1e-12)

	_, ok = ZScore(5, 5, 0)
	assert.False(t, ok, "zero std has no defined z-score")

	_, ok = ZScore(5, 5, 1e-15)
	assert.False(t, ok, "near-zero std has no defined z-score")
}

func TestWindow(t *testing.T) {
	data := []float64{10, 10, 10, 1, 2, 3, 4, 5}

	stats := Window(data, 5, 1)
	assert.Equal(t, 5, stats.Count)
	assert.InDelta(t, 3.0, stats.Mean, 1e-12, "window covers the trailing values only")
	assert.InDelta(t, 2.5, stats.Variance, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), stats.Std, 1e-12)

	full := Window(data, 0, 0)
	assert.Equal(t, len(data), full.Count, "period 0 uses all data")

	oversized := Window(data, 100, 0)
	assert.Equal(t, len(data), oversized.Count, "period beyond the data uses all of it")

	empty := Window(nil, 5, 1)
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, 0.0, empty.Mean)
}

func TestDiff(t *testing.T) {
	assert.Equal(t, []float64{1, 2, -3}, Diff([]float64{0, 1, 3, 0}))
	assert.Nil(t, Diff([]float64{5}))
	assert.Nil(t, Diff(nil))
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	up := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Correlation(x, up), 1e-12, "perfect positive")

	down := []float64{10, 8, 6, 4, 2}
	assert.InDelta(t, -1.0, Correlation(x, down), 1e-12, "perfect negative")

	flat := []float64{3, 3, 3, 3, 3}
	assert.Equal(t, 0.0, Correlation(x, flat), "degenerate series")

	assert.Equal(t, 0.0, Correlation(x, []float64{1, 2}), "length mismatch")
}
