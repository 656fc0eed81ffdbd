// Package analytics derives summary performance statistics from a completed
// backtest run. Evaluation is a pure function of the equity curve and trade
// log, so it is safe to call repeatedly or on partial curves.
package analytics

import (
	"math"

	"github.com/rxtech-lab/pairtrade/internal/stats"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// Evaluate computes the performance report for a run. barsPerYear scales the
// per-bar Sharpe ratio to an annual figure (e.g. 8760 for hourly bars on a
// 24/7 market). Degenerate inputs produce zeros, not NaNs: a constant curve
// has Sharpe 0 and drawdown 0, and a run without trades has win rate 0.
func Evaluate(equityCurve []types.EquityPoint, tradeLog []types.RoundTrip, barsPerYear int) (types.PerformanceReport, error) {
	if len(equityCurve) == 0 {
		return types.PerformanceReport{}, errors.New(errors.ErrCodeInsufficientData,
			"cannot evaluate an empty equity curve")
	}
	if barsPerYear <= 0 {
		return types.PerformanceReport{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"bars per year must be positive, got %d", barsPerYear)
	}
	if equityCurve[0].Equity <= 0 {
		return types.PerformanceReport{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"initial equity must be positive, got %f", equityCurve[0].Equity)
	}

	report := types.PerformanceReport{
		NumTrades: len(tradeLog),
	}

	report.TotalReturn = equityCurve[len(equityCurve)-1].Equity/equityCurve[0].Equity - 1

	returns, err := periodicReturns(equityCurve)
	if err != nil {
		return types.PerformanceReport{}, err
	}
	report.AnnualizedSharpe = annualizedSharpe(returns, barsPerYear)
	report.MaxDrawdown = maxDrawdown(equityCurve)

	wins := 0
	for _, trade := range tradeLog {
		if trade.PnL > 0 {
			wins++
		}
	}
	if len(tradeLog) > 0 {
		report.WinRate = float64(wins) / float64(len(tradeLog))
	}

	return report, nil
}

func periodicReturns(equityCurve []types.EquityPoint) ([]float64, error) {
	if len(equityCurve) < 2 {
		return nil, nil
	}

	returns := make([]float64, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		previous := equityCurve[i-1].Equity
		if previous == 0 {
			return nil, errors.Newf(errors.ErrCodeNumericInstability,
				"equity reached zero at %s, periodic returns undefined", equityCurve[i-1].Time)
		}
		returns[i-1] = equityCurve[i].Equity/previous - 1
	}

	return returns, nil
}

func annualizedSharpe(returns []float64, barsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}

	std := stats.StdDev(returns, 1)
	if std == 0 {
		return 0
	}

	return stats.Mean(returns) / std * math.Sqrt(float64(barsPerYear))
}

func maxDrawdown(equityCurve []types.EquityPoint) float64 {
	peak := equityCurve[0].Equity

	var deepest float64
	for _, point := range equityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			drawdown := (peak - point.Equity) / peak
			if drawdown > deepest {
				deepest = drawdown
			}
		}
	}

	return deepest
}
