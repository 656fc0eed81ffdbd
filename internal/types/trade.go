package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Trade struct {
	Order         Order     `csv:"order" json:"order"`
	ExecutedAt    time.Time `csv:"executed_at" json:"executed_at"`
	ExecutedQty   float64   `csv:"executed_qty" json:"executed_qty"`
	ExecutedPrice float64   `csv:"executed_price" json:"executed_price"`
	// Fee is the fee for this trade
	Fee float64 `csv:"fee" json:"fee"`
	// PnL is the profit and loss for this trade
	// For example, you hold 300 units at an average entry price of $100.01
	// and sell 100 units at $110.0: the PnL is (110.0-100.01)*100 = $999.
	// The fee is included in the average entry price, and pnl is 0 for an
	// opening fill.
	PnL float64 `csv:"pnl" json:"pnl"`
}

// Position tracks current holdings of one leg of the pair. Entry and exit
// flows are accumulated separately for the long and short sides so that
// average prices and realized pnl stay reproducible from the flows alone.
type Position struct {
	Symbol                     string  `csv:"symbol"`
	TotalLongPositionQuantity  float64 `csv:"long_position_quantity"`
	TotalShortPositionQuantity float64 `csv:"short_position_quantity"`

	TotalLongInPositionQuantity  float64 `csv:"total_in_long_position_quantity"`
	TotalLongOutPositionQuantity float64 `csv:"total_out_long_position_quantity"`
	TotalLongInPositionAmount    float64 `csv:"total_in_long_position_amount"`
	TotalLongOutPositionAmount   float64 `csv:"total_out_long_position_amount"`

	TotalShortInPositionQuantity  float64 `csv:"total_in_short_position_quantity"`
	TotalShortOutPositionQuantity float64 `csv:"total_out_short_position_quantity"`
	TotalShortInPositionAmount    float64 `csv:"total_in_short_position_amount"`
	TotalShortOutPositionAmount   float64 `csv:"total_out_short_position_amount"`

	TotalLongInFee   float64 `csv:"total_long_in_fee"`
	TotalLongOutFee  float64 `csv:"total_long_out_fee"`
	TotalShortInFee  float64 `csv:"total_short_in_fee"`
	TotalShortOutFee float64 `csv:"total_short_out_fee"`

	OpenTimestamp time.Time `csv:"open_timestamp"`
	// Pair identifies the two-leg relationship the position belongs to
	Pair string `csv:"pair"`
}

// NetQuantity returns the signed net holding: long quantity minus short
// quantity. Zero when the leg is flat.
func (p *Position) NetQuantity() float64 {
	return p.TotalLongPositionQuantity - p.TotalShortPositionQuantity
}

// GetAverageLongPositionEntryPrice calculates the average entry price including fees.
func (p *Position) GetAverageLongPositionEntryPrice() float64 {
	if p.TotalLongInPositionQuantity == 0 {
		return 0
	}

	return (p.TotalLongInPositionAmount + p.TotalLongInFee) / p.TotalLongInPositionQuantity
}

func (p *Position) GetAverageShortPositionEntryPrice() float64 {
	if p.TotalShortInPositionQuantity == 0 {
		return 0
	}

	return (p.TotalShortInPositionAmount - p.TotalShortInFee) / p.TotalShortInPositionQuantity
}

// GetAverageLongPositionExitPrice calculates the average exit price including fees.
func (p *Position) GetAverageLongPositionExitPrice() float64 {
	if p.TotalLongOutPositionQuantity == 0 {
		return 0
	}

	return (p.TotalLongOutPositionAmount - p.TotalLongOutFee) / p.TotalLongOutPositionQuantity
}

// GetAverageShortPositionExitPrice calculates the average exit price including fees.
func (p *Position) GetAverageShortPositionExitPrice() float64 {
	if p.TotalShortOutPositionQuantity == 0 {
		return 0
	}

	return (p.TotalShortOutPositionAmount + p.TotalShortOutFee) / p.TotalShortOutPositionQuantity
}

// GetTotalShortPositionPnl calculates the total pnl for the short side.
func (p *Position) GetTotalShortPositionPnl() decimal.Decimal {
	if p.TotalShortInPositionQuantity == 0 {
		return decimal.Zero
	}

	if p.TotalShortOutPositionQuantity == 0 {
		return decimal.Zero
	}

	shortEntryDec := decimal.NewFromFloat(p.TotalShortOutPositionQuantity).Mul(decimal.NewFromFloat(p.GetAverageShortPositionEntryPrice()))
	shortExitDec := decimal.NewFromFloat(p.TotalShortOutPositionQuantity).Mul(decimal.NewFromFloat(p.GetAverageShortPositionExitPrice()))
	// short pnl is the opposite of long pnl: exiting above the entry
	// price loses money
	shortResultDec := shortEntryDec.Sub(shortExitDec)

	return shortResultDec
}

func (p *Position) GetTotalLongPositionPnl() decimal.Decimal {
	if p.TotalLongInPositionQuantity == 0 {
		return decimal.Zero
	}

	if p.TotalLongOutPositionQuantity == 0 {
		return decimal.Zero
	}

	longEntryDec := decimal.NewFromFloat(p.TotalLongOutPositionQuantity).Mul(decimal.NewFromFloat(p.GetAverageLongPositionEntryPrice()))
	longExitDec := decimal.NewFromFloat(p.TotalLongOutPositionQuantity).Mul(decimal.NewFromFloat(p.GetAverageLongPositionExitPrice()))
	longResultDec := longExitDec.Sub(longEntryDec)

	return longResultDec
}

func (p *Position) GetTotalPnL() float64 {
	longResult := p.GetTotalLongPositionPnl()
	shortResult := p.GetTotalShortPositionPnl()

	result, _ := longResult.Add(shortResult).Float64()

	return result
}
