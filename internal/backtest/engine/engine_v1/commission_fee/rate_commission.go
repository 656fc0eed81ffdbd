package commission_fee

// RateCommissionFee charges a fixed fraction of the fill notional. This is
// the default cost model for spread backtests: cost = rate * quantity * price
// on every fill, both legs, both directions.
type RateCommissionFee struct {
	rate float64
}

// NewRateCommissionFee creates a rate-based cost model. Negative rates are
// treated as zero.
func NewRateCommissionFee(rate float64) CommissionFee {
	if rate < 0 {
		rate = 0
	}

	return &RateCommissionFee{rate: rate}
}

func (c *RateCommissionFee) Calculate(quantity float64, price float64) float64 {
	return c.rate * quantity * price
}
