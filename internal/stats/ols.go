package stats

import (
	"math"

	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// OLSResult holds the fitted line from an ordinary least squares regression
// of y on a single regressor x.
type OLSResult struct {
	Slope     float64
	Intercept float64
	Residuals []float64
}

// OLS regresses y on x with an intercept and returns the fitted slope,
// intercept and per-observation residuals. It fails with
// ErrCodeDegenerateRegression when x has no variance, since the slope is
// undefined in that case.
func OLS(y, x []float64) (OLSResult, error) {
	if len(y) != len(x) {
		return OLSResult{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"series length mismatch: y has %d observations, x has %d", len(y), len(x))
	}
	if len(y) < 2 {
		return OLSResult{}, errors.Newf(errors.ErrCodeInsufficientData,
			"regression requires at least 2 observations, got %d", len(y))
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var covXY, varX float64
	for i := range x {
		diffX := x[i] - meanX
		covXY += diffX * (y[i] - meanY)
		varX += diffX * diffX
	}

	if varX < epsilon {
		return OLSResult{}, errors.New(errors.ErrCodeDegenerateRegression,
			"regressor has zero variance")
	}

	slope := covXY / varX
	intercept := meanY - slope*meanX

	residuals := make([]float64, len(y))
	for i := range y {
		residuals[i] = y[i] - slope*x[i] - intercept
	}

	return OLSResult{Slope: slope, Intercept: intercept, Residuals: residuals}, nil
}

// multiOLS regresses y on the given column vectors (no implicit intercept;
// callers append a column of ones when they want one) and returns the
// coefficient vector along with its standard errors and the regression
// residuals. Used by the Dickey-Fuller machinery, which needs the
// t-statistic of a single coefficient.
func multiOLS(y []float64, cols [][]float64) (coef, stderr, resid []float64, err error) {
	n := len(y)
	k := len(cols)
	if k == 0 {
		return nil, nil, nil, errors.New(errors.ErrCodeInvalidParameter, "no regressors given")
	}
	for _, col := range cols {
		if len(col) != n {
			return nil, nil, nil, errors.Newf(errors.ErrCodeInvalidParameter,
				"regressor length mismatch: response has %d observations, column has %d", n, len(col))
		}
	}
	if n <= k {
		return nil, nil, nil, errors.Newf(errors.ErrCodeInsufficientData,
			"regression with %d coefficients requires more than %d observations, got %d", k, k, n)
	}

	// Normal equations: (X'X) coef = X'y.
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := 0; i < k; i++ {
		xtx[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			var sum float64
			for t := 0; t < n; t++ {
				sum += cols[i][t] * cols[j][t]
			}
			xtx[i][j] = sum
		}
		var sum float64
		for t := 0; t < n; t++ {
			sum += cols[i][t] * y[t]
		}
		xty[i] = sum
	}

	inverse, err := invertMatrix(xtx)
	if err != nil {
		return nil, nil, nil, err
	}

	coef = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coef[i] += inverse[i][j] * xty[j]
		}
	}

	resid = make([]float64, n)
	var rss float64
	for t := 0; t < n; t++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += coef[j] * cols[j][t]
		}
		resid[t] = y[t] - fitted
		rss += resid[t] * resid[t]
	}

	sigma2 := rss / float64(n-k)
	stderr = make([]float64, k)
	for j := 0; j < k; j++ {
		stderr[j] = math.Sqrt(sigma2 * inverse[j][j])
	}

	return coef, stderr, resid, nil
}

// invertMatrix inverts a square matrix via Gauss-Jordan elimination with
// partial pivoting. The matrices involved here are tiny (one row per
// regression coefficient), so no decomposition library is warranted.
func invertMatrix(matrix [][]float64) ([][]float64, error) {
	size := len(matrix)

	// Augment with the identity.
	augmented := make([][]float64, size)
	for i := 0; i < size; i++ {
		augmented[i] = make([]float64, 2*size)
		copy(augmented[i], matrix[i])
		augmented[i][size+i] = 1
	}

	for col := 0; col < size; col++ {
		pivot := col
		for row := col + 1; row < size; row++ {
			if math.Abs(augmented[row][col]) > math.Abs(augmented[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(augmented[pivot][col]) < epsilon {
			return nil, errors.New(errors.ErrCodeNumericInstability,
				"singular design matrix in regression")
		}
		augmented[col], augmented[pivot] = augmented[pivot], augmented[col]

		scale := augmented[col][col]
		for j := 0; j < 2*size; j++ {
			augmented[col][j] /= scale
		}

		for row := 0; row < size; row++ {
			if row == col {
				continue
			}
			factor := augmented[row][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*size; j++ {
				augmented[row][j] -= factor * augmented[col][j]
			}
		}
	}

	inverse := make([][]float64, size)
	for i := 0; i < size; i++ {
		inverse[i] = augmented[i][size:]
	}

	return inverse, nil
}
