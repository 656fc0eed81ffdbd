// Package coint decides whether a pair is tradable by testing its spread
// for stationarity. A pair whose spread keeps drifting has no mean to revert
// to, so the backtest refuses to trade it.
package coint

import (
	"github.com/rxtech-lab/pairtrade/internal/stats"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// Tester classifies spreads via the augmented Dickey-Fuller test. It holds
// only configuration and never mutates state, so it is safe to share across
// parallel pair runs.
type Tester struct {
	significance float64
	lags         int
}

// NewTester creates a tester that rejects the unit-root hypothesis at the
// given significance level. lags sets the number of lagged difference terms
// in the Dickey-Fuller regression; pass a negative value to choose one with
// the cube-root rule.
func NewTester(significance float64, lags int) (*Tester, error) {
	if significance <= 0 || significance >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidSignificance,
			"significance level must be in (0, 1), got %f", significance)
	}

	return &Tester{significance: significance, lags: lags}, nil
}

// Significance returns the configured significance level.
func (t *Tester) Significance() float64 {
	return t.significance
}

// Test runs the stationarity test on an already-computed spread series.
// IsCointegrated is true when the p-value falls below the significance
// level.
func (t *Tester) Test(series []float64) (types.CointegrationResult, error) {
	result, err := stats.ADF(series, t.lags)
	if err != nil {
		return types.CointegrationResult{}, err
	}

	return types.CointegrationResult{
		Statistic:      result.Statistic,
		PValue:         result.PValue,
		CriticalValues: result.CriticalValues,
		IsCointegrated: result.PValue < t.significance,
	}, nil
}

// EngleGranger runs the two-step cointegration test on a raw pair: regress
// A on B, then test the residuals for stationarity. Equivalent in effect to
// Test on a statically fitted spread.
func (t *Tester) EngleGranger(seriesA, seriesB *types.PriceSeries) (types.CointegrationResult, error) {
	if !seriesA.AlignedWith(seriesB) {
		return types.CointegrationResult{}, errors.Newf(errors.ErrCodeUnalignedSeries,
			"price series %s and %s are not aligned", seriesA.Symbol(), seriesB.Symbol())
	}

	ols, err := stats.OLS(seriesA.Prices(), seriesB.Prices())
	if err != nil {
		return types.CointegrationResult{}, err
	}

	return t.Test(ols.Residuals)
}

// Require converts a failed gate into the typed rejection error. A nil
// return means the pair may be traded.
func (t *Tester) Require(result types.CointegrationResult) error {
	if result.IsCointegrated {
		return nil
	}

	return errors.NewCointegrationRejectedError(result.Statistic, result.PValue, t.significance)
}
