// Package stats provides the statistical primitives behind the pair
// pipeline: descriptive statistics, ordinary least squares and the augmented
// Dickey-Fuller unit-root test. All functions operate on plain float64
// slices and never mutate their inputs.
package stats

import "math"

// epsilon below which a variance or denominator is treated as zero.
const epsilon = 1e-12

// Mean returns the arithmetic mean of data, 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	var sum float64
	for _, val := range data {
		sum += val
	}

	return sum / float64(len(data))
}

// Variance returns the variance of data with the given delta degrees of
// freedom: the squared deviations are divided by len(data)-ddof. ddof 0 is
// the population estimator, ddof 1 the sample estimator. Returns 0 when
// len(data) <= ddof.
func Variance(data []float64, ddof int) float64 {
	n := len(data)
	if n <= ddof {
		return 0
	}

	mean := Mean(data)

	var sumSq float64
	for _, val := range data {
		diff := val - mean
		sumSq += diff * diff
	}

	return sumSq / float64(n-ddof)
}

// StdDev returns the standard deviation of data with the given delta degrees
// of freedom.
func StdDev(data []float64, ddof int) float64 {
	return math.Sqrt(Variance(data, ddof))
}

// ZScore standardizes value against the given mean and standard deviation.
// The second return is false when std is too small to divide by; the caller
// must treat the bar as having no defined z-score rather than receiving an
// arbitrary value.
func ZScore(value, mean, std float64) (float64, bool) {
	if std < epsilon {
		return 0, false
	}

	return (value - mean) / std, true
}

// WindowStats holds the trailing-window statistics used for spread
// standardization.
type WindowStats struct {
	Mean     float64
	Std      float64
	Variance float64
	Count    int
}

// Window computes mean, variance and standard deviation over the most recent
// period values of data with the given delta degrees of freedom. A period
// of 0, or longer than the data, uses all of it.
func Window(data []float64, period, ddof int) WindowStats {
	if len(data) == 0 {
		return WindowStats{}
	}

	n := len(data)
	if period <= 0 || period > n {
		period = n
	}

	recent := data[n-period:]
	variance := Variance(recent, ddof)

	return WindowStats{
		Mean:     Mean(recent),
		Std:      math.Sqrt(variance),
		Variance: variance,
		Count:    len(recent),
	}
}

// Diff returns the first differences of data: out[i] = data[i+1] - data[i].
// The result is one element shorter than the input.
func Diff(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}

	out := make([]float64, len(data)-1)
	for i := range out {
		out[i] = data[i+1] - data[i]
	}

	return out
}

// Correlation returns the Pearson correlation coefficient of x and y, 0 when
// either series is degenerate or the lengths differ.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var numerator, varX, varY float64
	for i := range x {
		diffX := x[i] - meanX
		diffY := y[i] - meanY
		numerator += diffX * diffY
		varX += diffX * diffX
		varY += diffY * diffY
	}

	denominator := math.Sqrt(varX * varY)
	if denominator < epsilon {
		return 0
	}

	return numerator / denominator
}
