package stats

import (
	"math"

	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// ADFResult holds the outcome of an augmented Dickey-Fuller unit-root test.
// Statistic is the t-statistic of the lagged level coefficient; the more
// negative it is, the stronger the evidence against a unit root.
type ADFResult struct {
	Statistic      float64
	PValue         float64
	Lags           int
	NObs           int
	CriticalValues map[string]float64
}

// ADF runs the augmented Dickey-Fuller test with a constant term on series.
// lags is the number of lagged difference terms; pass a negative value to
// pick one with the cube-root rule of thumb. The p-value and critical values
// follow MacKinnon's approximations for the constant-only case.
func ADF(series []float64, lags int) (ADFResult, error) {
	n := len(series)
	if lags < 0 {
		lags = int(math.Cbrt(float64(n - 1)))
	}

	// The regression consumes one observation for differencing and one per
	// lagged difference term, and needs more rows than coefficients.
	minLen := lags + 2 + (lags + 2)
	if n < minLen {
		return ADFResult{}, errors.Newf(errors.ErrCodeInsufficientData,
			"dickey-fuller test with %d lags requires at least %d observations, got %d", lags, minLen, n)
	}

	diffs := Diff(series)
	nobs := len(diffs) - lags

	response := diffs[lags:]

	ones := make([]float64, nobs)
	level := make([]float64, nobs)
	for t := 0; t < nobs; t++ {
		ones[t] = 1
		level[t] = series[lags+t]
	}

	cols := make([][]float64, 0, lags+2)
	cols = append(cols, ones, level)
	for lag := 1; lag <= lags; lag++ {
		lagged := make([]float64, nobs)
		for t := 0; t < nobs; t++ {
			lagged[t] = diffs[lags+t-lag]
		}
		cols = append(cols, lagged)
	}

	coef, stderr, _, err := multiOLS(response, cols)
	if err != nil {
		return ADFResult{}, errors.Wrap(errors.ErrCodeRegressionFailed,
			"dickey-fuller regression failed", err)
	}

	if stderr[1] < epsilon {
		return ADFResult{}, errors.New(errors.ErrCodeNumericInstability,
			"dickey-fuller statistic undefined: zero standard error on level coefficient")
	}

	statistic := coef[1] / stderr[1]

	return ADFResult{
		Statistic:      statistic,
		PValue:         mackinnonPValue(statistic),
		Lags:           lags,
		NObs:           nobs,
		CriticalValues: mackinnonCriticalValues(nobs),
	}, nil
}

// MacKinnon (2010) response-surface coefficients for the constant-only
// Dickey-Fuller distribution. The critical value at a given size is
// b0 + b1/nobs + b2/nobs^2 + b3/nobs^3.
var dfCriticalCoefs = map[string][4]float64{
	"1%":  {-3.43035, -6.5393, -16.786, -79.433},
	"5%":  {-2.86154, -2.8903, -4.234, -40.04},
	"10%": {-2.56677, -1.5384, -2.809, 0},
}

func mackinnonCriticalValues(nobs int) map[string]float64 {
	t := float64(nobs)
	values := make(map[string]float64, len(dfCriticalCoefs))
	for size, b := range dfCriticalCoefs {
		values[size] = b[0] + b[1]/t + b[2]/(t*t) + b[3]/(t*t*t)
	}

	return values
}

// MacKinnon (1994) polynomial approximations to the asymptotic p-value of
// the constant-only Dickey-Fuller statistic. Statistics beyond the fitted
// range saturate at 0 or 1.
const (
	dfTauMin  = -18.83
	dfTauMax  = 2.74
	dfTauStar = -1.61
)

var (
	dfSmallPCoefs = [3]float64{2.1659, 1.4412, 3.8269e-2}
	dfLargePCoefs = [4]float64{1.7339, 9.3202e-1, -1.2745e-1, -1.0368e-2}
)

func mackinnonPValue(stat float64) float64 {
	if stat <= dfTauMin {
		return 0
	}
	if stat >= dfTauMax {
		return 1
	}

	var z float64
	if stat <= dfTauStar {
		z = dfSmallPCoefs[0] + dfSmallPCoefs[1]*stat + dfSmallPCoefs[2]*stat*stat
	} else {
		z = dfLargePCoefs[0] + dfLargePCoefs[1]*stat + dfLargePCoefs[2]*stat*stat + dfLargePCoefs[3]*stat*stat*stat
	}

	return normCDF(z)
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
