package types

import "time"

// MarketData is a single OHLCV bar for one instrument.
type MarketData struct {
	Id     string    `csv:"id"`
	Symbol string    `csv:"symbol"`
	Time   time.Time `csv:"time"`
	Open   float64   `csv:"open"`
	High   float64   `csv:"high"`
	Low    float64   `csv:"low"`
	Close  float64   `csv:"close"`
	Volume float64   `csv:"volume"`
}

// PairBar is one aligned observation of both legs of a pair: the two bars
// share the same timestamp.
type PairBar struct {
	Time time.Time `csv:"time"`
	A    MarketData
	B    MarketData
}
