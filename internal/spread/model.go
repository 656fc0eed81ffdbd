// Package spread estimates the linear hedge ratio between two price series
// and derives the spread and its standardized z-score series that drive
// signal generation.
package spread

import (
	"fmt"
	"math"

	"github.com/rxtech-lab/pairtrade/internal/stats"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// Model fits hedge ratios and computes spreads. It carries no mutable state,
// only the price transform choice, so a single Model is safe to share across
// parallel pair runs.
type Model struct {
	useLogPrices bool
}

// NewModel creates a spread model. When useLogPrices is true all fitting and
// spread computation happens on log-transformed prices.
func NewModel(useLogPrices bool) *Model {
	return &Model{useLogPrices: useLogPrices}
}

// ZScore is the standardized spread at one bar. Defined is false while the
// rolling window lacks history or its standard deviation is zero; such bars
// must never trigger a transition.
type ZScore struct {
	Value   float64
	Defined bool
}

// Fit estimates a static hedge ratio by regressing A on B over the full
// shared history. The returned ratio has Window 0.
func (m *Model) Fit(seriesA, seriesB *types.PriceSeries) (types.HedgeRatio, error) {
	if !seriesA.AlignedWith(seriesB) {
		return types.HedgeRatio{}, errors.Newf(errors.ErrCodeUnalignedSeries,
			"price series %s and %s are not aligned", seriesA.Symbol(), seriesB.Symbol())
	}
	if seriesA.Len() < 2 {
		return types.HedgeRatio{}, errors.NewInsufficientDataError(2, seriesA.Len(),
			pairLabel(seriesA, seriesB), "hedge ratio fit requires at least 2 bars")
	}

	return m.fitRange(seriesA, seriesB, 0, seriesA.Len(), 0)
}

// FitWindow estimates a hedge ratio over the window bars ending at endIdx
// inclusive. Only data up to endIdx is used, so a rolling caller never looks
// ahead.
func (m *Model) FitWindow(seriesA, seriesB *types.PriceSeries, window, endIdx int) (types.HedgeRatio, error) {
	if !seriesA.AlignedWith(seriesB) {
		return types.HedgeRatio{}, errors.Newf(errors.ErrCodeUnalignedSeries,
			"price series %s and %s are not aligned", seriesA.Symbol(), seriesB.Symbol())
	}
	if window < 2 {
		return types.HedgeRatio{}, errors.Newf(errors.ErrCodeInvalidWindow,
			"estimation window must be at least 2 bars, got %d", window)
	}
	if endIdx < 0 || endIdx >= seriesA.Len() {
		return types.HedgeRatio{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"bar index %d out of range for %d bars", endIdx, seriesA.Len())
	}
	if endIdx+1 < window {
		return types.HedgeRatio{}, errors.NewInsufficientDataErrorf(window, endIdx+1,
			pairLabel(seriesA, seriesB),
			"only %d bars available before bar %d, estimation window needs %d", endIdx+1, endIdx, window)
	}

	return m.fitRange(seriesA, seriesB, endIdx+1-window, endIdx+1, window)
}

func (m *Model) fitRange(seriesA, seriesB *types.PriceSeries, start, end, window int) (types.HedgeRatio, error) {
	pricesA, err := m.transform(seriesA, start, end)
	if err != nil {
		return types.HedgeRatio{}, err
	}
	pricesB, err := m.transform(seriesB, start, end)
	if err != nil {
		return types.HedgeRatio{}, err
	}

	result, err := stats.OLS(pricesA, pricesB)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeDegenerateRegression) {
			return types.HedgeRatio{}, errors.NewDegenerateRegressionError(seriesB.Symbol(), window, end-1,
				fmt.Sprintf("%s has zero price variance over the estimation window ending at bar %d", seriesB.Symbol(), end-1))
		}
		return types.HedgeRatio{}, err
	}

	return types.HedgeRatio{Beta: result.Slope, Alpha: result.Intercept, Window: window}, nil
}

// Spread computes spread[t] = A[t] - beta*B[t] - alpha over the full series
// with a single static hedge ratio.
func (m *Model) Spread(seriesA, seriesB *types.PriceSeries, hedge types.HedgeRatio) (types.SpreadSeries, error) {
	if !seriesA.AlignedWith(seriesB) {
		return types.SpreadSeries{}, errors.Newf(errors.ErrCodeUnalignedSeries,
			"price series %s and %s are not aligned", seriesA.Symbol(), seriesB.Symbol())
	}

	pricesA, err := m.transform(seriesA, 0, seriesA.Len())
	if err != nil {
		return types.SpreadSeries{}, err
	}
	pricesB, err := m.transform(seriesB, 0, seriesB.Len())
	if err != nil {
		return types.SpreadSeries{}, err
	}

	values := make([]float64, len(pricesA))
	for i := range values {
		values[i] = pricesA[i] - hedge.Beta*pricesB[i] - hedge.Alpha
	}

	return types.SpreadSeries{Times: seriesA.Times(), Values: values}, nil
}

// RollingSpread recomputes the hedge ratio at every bar over the trailing
// window and evaluates the spread at that bar with the freshly fitted ratio.
// The returned series starts at bar window-1; the hedge slice is aligned
// 1:1 with the spread values.
func (m *Model) RollingSpread(seriesA, seriesB *types.PriceSeries, window int) (types.SpreadSeries, []types.HedgeRatio, error) {
	if !seriesA.AlignedWith(seriesB) {
		return types.SpreadSeries{}, nil, errors.Newf(errors.ErrCodeUnalignedSeries,
			"price series %s and %s are not aligned", seriesA.Symbol(), seriesB.Symbol())
	}
	if window < 2 {
		return types.SpreadSeries{}, nil, errors.Newf(errors.ErrCodeInvalidWindow,
			"estimation window must be at least 2 bars, got %d", window)
	}
	if seriesA.Len() < window {
		return types.SpreadSeries{}, nil, errors.NewInsufficientDataErrorf(window, seriesA.Len(),
			pairLabel(seriesA, seriesB),
			"rolling fit needs %d bars, got %d", window, seriesA.Len())
	}

	pricesA, err := m.transform(seriesA, 0, seriesA.Len())
	if err != nil {
		return types.SpreadSeries{}, nil, err
	}
	pricesB, err := m.transform(seriesB, 0, seriesB.Len())
	if err != nil {
		return types.SpreadSeries{}, nil, err
	}

	count := seriesA.Len() - window + 1
	values := make([]float64, 0, count)
	hedges := make([]types.HedgeRatio, 0, count)
	times := seriesA.Times()[window-1:]

	for end := window - 1; end < seriesA.Len(); end++ {
		hedge, err := m.FitWindow(seriesA, seriesB, window, end)
		if err != nil {
			return types.SpreadSeries{}, nil, err
		}
		values = append(values, pricesA[end]-hedge.Beta*pricesB[end]-hedge.Alpha)
		hedges = append(hedges, hedge)
	}

	return types.SpreadSeries{Times: times, Values: values}, hedges, nil
}

// ZScores standardizes the spread. With a positive window each bar is scored
// against the trailing window bars (sample standard deviation); bars with
// fewer than window observations are undefined. With window <= 0 the whole
// series' mean and standard deviation are used for every bar.
func (m *Model) ZScores(spread types.SpreadSeries, window int) []ZScore {
	scores := make([]ZScore, spread.Len())

	if window <= 0 {
		mean := stats.Mean(spread.Values)
		std := stats.StdDev(spread.Values, 1)
		for i, value := range spread.Values {
			z, ok := stats.ZScore(value, mean, std)
			scores[i] = ZScore{Value: z, Defined: ok}
		}
		return scores
	}

	for i, value := range spread.Values {
		if i+1 < window {
			continue
		}
		trailing := stats.Window(spread.Values[:i+1], window, 1)
		z, ok := stats.ZScore(value, trailing.Mean, trailing.Std)
		scores[i] = ZScore{Value: z, Defined: ok}
	}

	return scores
}

func (m *Model) transform(series *types.PriceSeries, start, end int) ([]float64, error) {
	prices := series.Prices()[start:end]
	if !m.useLogPrices {
		return prices, nil
	}

	logged := make([]float64, len(prices))
	for i, price := range prices {
		if price <= 0 {
			return nil, errors.Newf(errors.ErrCodeNumericInstability,
				"log price undefined for non-positive price %f of %s at bar %d", price, series.Symbol(), start+i)
		}
		logged[i] = math.Log(price)
	}

	return logged, nil
}

func pairLabel(seriesA, seriesB *types.PriceSeries) string {
	return fmt.Sprintf("%s/%s", seriesA.Symbol(), seriesB.Symbol())
}
