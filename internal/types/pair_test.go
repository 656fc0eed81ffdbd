package types

import (
	"testing"
	"time"

	"github.com/rxtech-lab/pairtrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type PairTestSuite struct {
	suite.Suite
}

func TestPairSuite(t *testing.T) {
	suite.Run(t, new(PairTestSuite))
}

func makeTimes(n int) []time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, n)

	for i := range times {
		times[i] = base.Add(time.Duration(i) * time.Minute)
	}

	return times
}

func (suite *PairTestSuite) TestNewPriceSeries() {
	times := makeTimes(3)
	prices := []float64{100.0, 101.0, 102.0}

	series, err := NewPriceSeries("BTCUSDT", times, prices)
	suite.NoError(err)
	suite.NotNil(series)
	suite.Equal("BTCUSDT", series.Symbol())
	suite.Equal(3, series.Len())
	suite.Equal(100.0, series.PriceAt(0))
	suite.Equal(102.0, series.PriceAt(2))
	suite.Equal(times[1], series.TimeAt(1))
}

func (suite *PairTestSuite) TestNewPriceSeriesLengthMismatch() {
	times := makeTimes(3)
	prices := []float64{100.0, 101.0}

	series, err := NewPriceSeries("BTCUSDT", times, prices)
	suite.Error(err)
	suite.Nil(series)
	suite.True(errors.HasCode(err, errors.ErrCodeUnalignedSeries))
}

func (suite *PairTestSuite) TestNewPriceSeriesNonIncreasingTimestamps() {
	times := makeTimes(3)
	times[2] = times[1] // duplicate timestamp
	prices := []float64{100.0, 101.0, 102.0}

	series, err := NewPriceSeries("BTCUSDT", times, prices)
	suite.Error(err)
	suite.Nil(series)
	suite.True(errors.HasCode(err, errors.ErrCodeUnalignedSeries))
}

func (suite *PairTestSuite) TestNewPriceSeriesEmpty() {
	series, err := NewPriceSeries("BTCUSDT", nil, nil)
	suite.NoError(err)
	suite.NotNil(series)
	suite.Equal(0, series.Len())
}

func (suite *PairTestSuite) TestPriceSeriesImmutable() {
	times := makeTimes(3)
	prices := []float64{100.0, 101.0, 102.0}

	series, err := NewPriceSeries("BTCUSDT", times, prices)
	suite.NoError(err)

	// Mutating the input slices must not affect the series
	prices[0] = -1.0
	suite.Equal(100.0, series.PriceAt(0))

	// Mutating the returned copies must not affect the series either
	out := series.Prices()
	out[1] = -1.0
	suite.Equal(101.0, series.PriceAt(1))

	outTimes := series.Times()
	outTimes[0] = outTimes[0].Add(time.Hour)
	suite.Equal(times[0], series.TimeAt(0))
}

func (suite *PairTestSuite) TestPriceSeriesAlignedWith() {
	times := makeTimes(3)
	a, err := NewPriceSeries("BTCUSDT", times, []float64{1, 2, 3})
	suite.NoError(err)
	b, err := NewPriceSeries("ETHUSDT", times, []float64{4, 5, 6})
	suite.NoError(err)

	suite.True(a.AlignedWith(b))
	suite.True(b.AlignedWith(a))
}

func (suite *PairTestSuite) TestPriceSeriesNotAlignedDifferentLength() {
	a, err := NewPriceSeries("BTCUSDT", makeTimes(3), []float64{1, 2, 3})
	suite.NoError(err)
	b, err := NewPriceSeries("ETHUSDT", makeTimes(4), []float64{4, 5, 6, 7})
	suite.NoError(err)

	suite.False(a.AlignedWith(b))
	suite.False(a.AlignedWith(nil))
}

func (suite *PairTestSuite) TestPriceSeriesNotAlignedDifferentTimestamps() {
	timesA := makeTimes(3)
	timesB := makeTimes(3)
	timesB[2] = timesB[2].Add(30 * time.Second)

	a, err := NewPriceSeries("BTCUSDT", timesA, []float64{1, 2, 3})
	suite.NoError(err)
	b, err := NewPriceSeries("ETHUSDT", timesB, []float64{4, 5, 6})
	suite.NoError(err)

	suite.False(a.AlignedWith(b))
}

func (suite *PairTestSuite) TestHedgeRatioStruct() {
	hedge := HedgeRatio{Beta: 16.8, Alpha: -12.5, Window: 200}

	suite.Equal(16.8, hedge.Beta)
	suite.Equal(-12.5, hedge.Alpha)
	suite.Equal(200, hedge.Window)
}

func (suite *PairTestSuite) TestSpreadSeriesLen() {
	spread := SpreadSeries{
		Times:  makeTimes(4),
		Values: []float64{0.1, -0.2, 0.3, -0.4},
	}

	suite.Equal(4, spread.Len())
	suite.Equal(0, SpreadSeries{}.Len())
}

func (suite *PairTestSuite) TestCointegrationResultStruct() {
	result := CointegrationResult{
		Statistic:      -3.82,
		PValue:         0.0026,
		CriticalValues: map[string]float64{"1%": -3.43, "5%": -2.86, "10%": -2.57},
		IsCointegrated: true,
	}

	suite.Equal(-3.82, result.Statistic)
	suite.Equal(0.0026, result.PValue)
	suite.Len(result.CriticalValues, 3)
	suite.True(result.IsCointegrated)
}

func (suite *PairTestSuite) TestRoundTripStruct() {
	entry := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	exit := time.Date(2024, 1, 10, 16, 0, 0, 0, time.UTC)

	trip := RoundTrip{
		Direction:      PositionStateLongSpread,
		EntryTimestamp: entry,
		ExitTimestamp:  exit,
		EntryZ:         -2.4,
		ExitZ:          -0.3,
		PnL:            153.2,
	}

	suite.Equal(PositionStateLongSpread, trip.Direction)
	suite.True(trip.ExitTimestamp.After(trip.EntryTimestamp))
	suite.Equal(-2.4, trip.EntryZ)
	suite.Equal(-0.3, trip.ExitZ)
	suite.Equal(153.2, trip.PnL)
}
