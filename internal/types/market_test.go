package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestMarketDataStruct() {
	now := time.Now()
	data := MarketData{
		Id:     "test-id-123",
		Symbol: "BTCUSDT",
		Time:   now,
		Open:   26500.0,
		High:   27000.0,
		Low:    26000.0,
		Close:  26750.0,
		Volume: 1000000.0,
	}

	suite.Equal("test-id-123", data.Id)
	suite.Equal("BTCUSDT", data.Symbol)
	suite.Equal(now, data.Time)
	suite.Equal(26500.0, data.Open)
	suite.Equal(27000.0, data.High)
	suite.Equal(26000.0, data.Low)
	suite.Equal(26750.0, data.Close)
	suite.Equal(1000000.0, data.Volume)
}

func (suite *MarketTestSuite) TestMarketDataZeroValues() {
	data := MarketData{}

	suite.Empty(data.Id)
	suite.Empty(data.Symbol)
	suite.True(data.Time.IsZero())
	suite.Equal(0.0, data.Open)
	suite.Equal(0.0, data.High)
	suite.Equal(0.0, data.Low)
	suite.Equal(0.0, data.Close)
	suite.Equal(0.0, data.Volume)
}

func (suite *MarketTestSuite) TestMarketDataOHLCVRelationships() {
	// High should be >= all other prices, Low should be <= all other prices
	data := MarketData{
		Id:     "test-1",
		Symbol: "ETHUSDT",
		Time:   time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		Open:   2450.0,
		High:   2455.0,
		Low:    2448.0,
		Close:  2452.0,
		Volume: 5000000.0,
	}

	suite.GreaterOrEqual(data.High, data.Open)
	suite.GreaterOrEqual(data.High, data.Close)
	suite.LessOrEqual(data.Low, data.Open)
	suite.LessOrEqual(data.Low, data.Close)
}

func (suite *MarketTestSuite) TestPairBarStruct() {
	ts := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	bar := PairBar{
		Time: ts,
		A: MarketData{
			Id:     "btc-1",
			Symbol: "BTCUSDT",
			Time:   ts,
			Open:   42000.0,
			High:   42100.0,
			Low:    41900.0,
			Close:  42050.0,
			Volume: 120.5,
		},
		B: MarketData{
			Id:     "eth-1",
			Symbol: "ETHUSDT",
			Time:   ts,
			Open:   2500.0,
			High:   2510.0,
			Low:    2490.0,
			Close:  2505.0,
			Volume: 900.0,
		},
	}

	suite.Equal(ts, bar.Time)
	suite.Equal(bar.Time, bar.A.Time)
	suite.Equal(bar.Time, bar.B.Time)
	suite.NotEqual(bar.A.Symbol, bar.B.Symbol)
	suite.Equal(42050.0, bar.A.Close)
	suite.Equal(2505.0, bar.B.Close)
}

func (suite *MarketTestSuite) TestPairBarZeroValues() {
	bar := PairBar{}

	suite.True(bar.Time.IsZero())
	suite.Empty(bar.A.Symbol)
	suite.Empty(bar.B.Symbol)
}
