package commission_fee

type CommissionFee interface {
	// Calculate the commission fee for a fill of the given quantity at the
	// given price and returns the fee in USD
	Calculate(quantity float64, price float64) float64
}

type Broker string

const (
	BrokerInteractiveBroker Broker = "interactive_broker"
	BrokerZero              Broker = "zero_commission"
	BrokerRate              Broker = "rate"
)

var AllBrokers = []any{
	BrokerInteractiveBroker,
	BrokerZero,
	BrokerRate,
}

// GetCommissionFeeHandler returns the cost model for the broker. The rate
// argument is the fraction of notional charged per fill and is only used by
// BrokerRate.
func GetCommissionFeeHandler(broker Broker, rate float64) CommissionFee {
	switch broker {
	case BrokerInteractiveBroker:
		return NewInteractiveBrokerCommissionFee()
	case BrokerRate:
		return NewRateCommissionFee(rate)
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
