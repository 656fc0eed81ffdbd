package types

import (
	"time"

	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// PriceSeries is an ordered sequence of (timestamp, price) samples for one
// instrument. Timestamps are strictly increasing. The series is immutable
// once constructed, which makes it safe to share across parallel per-pair
// backtests; the constructor and all accessors copy their slices.
type PriceSeries struct {
	symbol string
	times  []time.Time
	prices []float64
}

// NewPriceSeries constructs a PriceSeries from parallel slices. It fails when
// the slices differ in length or the timestamps are not strictly increasing.
func NewPriceSeries(symbol string, times []time.Time, prices []float64) (*PriceSeries, error) {
	if len(times) != len(prices) {
		return nil, errors.Newf(errors.ErrCodeUnalignedSeries,
			"series %s has %d timestamps but %d prices", symbol, len(times), len(prices))
	}

	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, errors.Newf(errors.ErrCodeUnalignedSeries,
				"series %s timestamps not strictly increasing at index %d (%s -> %s)",
				symbol, i, times[i-1].Format(time.RFC3339), times[i].Format(time.RFC3339))
		}
	}

	s := &PriceSeries{
		symbol: symbol,
		times:  make([]time.Time, len(times)),
		prices: make([]float64, len(prices)),
	}
	copy(s.times, times)
	copy(s.prices, prices)

	return s, nil
}

// Symbol returns the instrument symbol.
func (s *PriceSeries) Symbol() string {
	return s.symbol
}

// Len returns the number of samples.
func (s *PriceSeries) Len() int {
	return len(s.prices)
}

// TimeAt returns the timestamp at index i.
func (s *PriceSeries) TimeAt(i int) time.Time {
	return s.times[i]
}

// PriceAt returns the price at index i.
func (s *PriceSeries) PriceAt(i int) float64 {
	return s.prices[i]
}

// Prices returns a copy of the price values.
func (s *PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.prices))
	copy(out, s.prices)

	return out
}

// Times returns a copy of the timestamps.
func (s *PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.times))
	copy(out, s.times)

	return out
}

// AlignedWith reports whether the other series has an identical timestamp set.
func (s *PriceSeries) AlignedWith(other *PriceSeries) bool {
	if other == nil || len(s.times) != len(other.times) {
		return false
	}

	for i := range s.times {
		if !s.times[i].Equal(other.times[i]) {
			return false
		}
	}

	return true
}

// HedgeRatio is the fitted linear relationship between the two legs of a
// pair: priceA ≈ Beta*priceB + Alpha over the estimation window.
type HedgeRatio struct {
	Beta  float64 `json:"beta" yaml:"beta"`
	Alpha float64 `json:"alpha" yaml:"alpha"`
	// Window is the number of bars the fit used. Zero means the full
	// available history (static fit).
	Window int `json:"window" yaml:"window"`
}

// SpreadSeries is the derived series spread[t] = priceA[t] - Beta*priceB[t] - Alpha,
// aligned 1:1 with the input timestamps. Read-only after computation.
type SpreadSeries struct {
	Times  []time.Time `json:"times" yaml:"times"`
	Values []float64   `json:"values" yaml:"values"`
}

// Len returns the number of spread observations.
func (s SpreadSeries) Len() int {
	return len(s.Values)
}

// CointegrationResult is the verdict of the stationarity test on the spread.
// Computed once per pair per evaluation window; immutable.
type CointegrationResult struct {
	Statistic      float64            `json:"statistic" yaml:"statistic"`
	PValue         float64            `json:"p_value" yaml:"p_value"`
	CriticalValues map[string]float64 `json:"critical_values" yaml:"critical_values"`
	IsCointegrated bool               `json:"is_cointegrated" yaml:"is_cointegrated"`
}

// EquityPoint is one entry of the equity curve: account equity marked to the
// bar's close.
type EquityPoint struct {
	Time   time.Time `json:"time" yaml:"time" csv:"time"`
	Equity float64   `json:"equity" yaml:"equity" csv:"equity"`
}

// RoundTrip is one closed position cycle of the spread, appended to the trade
// log when a position transitions back to flat.
type RoundTrip struct {
	Direction      PositionState `json:"direction" yaml:"direction" csv:"direction"`
	EntryTimestamp time.Time     `json:"entry_timestamp" yaml:"entry_timestamp" csv:"entry_timestamp"`
	ExitTimestamp  time.Time     `json:"exit_timestamp" yaml:"exit_timestamp" csv:"exit_timestamp"`
	EntryZ         float64       `json:"entry_z" yaml:"entry_z" csv:"entry_z"`
	ExitZ          float64       `json:"exit_z" yaml:"exit_z" csv:"exit_z"`
	PnL            float64       `json:"pnl" yaml:"pnl" csv:"pnl"`
}

// PerformanceReport summarizes a completed run. Derived purely from the
// equity curve and the trade log.
type PerformanceReport struct {
	TotalReturn      float64 `json:"total_return" yaml:"total_return"`
	AnnualizedSharpe float64 `json:"annualized_sharpe" yaml:"annualized_sharpe"`
	MaxDrawdown      float64 `json:"max_drawdown" yaml:"max_drawdown"`
	NumTrades        int     `json:"num_trades" yaml:"num_trades"`
	WinRate          float64 `json:"win_rate" yaml:"win_rate"`
}
