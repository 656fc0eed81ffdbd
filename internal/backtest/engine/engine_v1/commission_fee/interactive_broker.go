package commission_fee

type InteractiveBrokerCommissionFee struct {
}

func NewInteractiveBrokerCommissionFee() CommissionFee {
	return &InteractiveBrokerCommissionFee{}
}

// Calculate charges 0.005 USD per unit with a 1 USD minimum, capped at 1% of
// the trade value.
func (c *InteractiveBrokerCommissionFee) Calculate(quantity float64, price float64) float64 {
	fee := 0.005 * quantity
	if fee < 1.0 {
		fee = 1.0
	}

	cap := 0.01 * quantity * price
	if cap > 0 && fee > cap {
		return cap
	}

	return fee
}
