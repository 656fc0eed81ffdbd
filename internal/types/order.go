package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

type PurchaseType string

type OrderType string

type OrderStatus string

type PositionType string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

const (
	PositionTypeLong  PositionType = "LONG"
	PositionTypeShort PositionType = "SHORT"
)

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderReasonEntryLongSpread  string = "entry_long_spread"
	OrderReasonEntryShortSpread string = "entry_short_spread"
	OrderReasonExitSpread       string = "exit_spread"
	OrderReasonStopOut          string = "stop_out"
	OrderReasonEndOfData        string = "end_of_data"
	OrderReasonInvalidQuantity  string = "invalid_quantity"
	OrderReasonInvalidPrice     string = "invalid_price"
)

type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
	Message string `yaml:"message" json:"message" csv:"message" validate:"required"`
}

// Order is a single-leg fill request produced by the engine. Direction is
// carried by Side with Quantity always positive; a pair transition produces
// one order per leg.
type Order struct {
	OrderID string `yaml:"order_id" json:"order_id" csv:"order_id"`
	// Pair identifies the two-leg relationship this order belongs to, e.g. "BTCUSDT/ETHUSDT"
	Pair      string       `yaml:"pair" json:"pair" csv:"pair" validate:"required"`
	Symbol    string       `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side      PurchaseType `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Quantity  float64      `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	Price     float64      `yaml:"price" json:"price" csv:"price" validate:"required,gt=0"`
	Timestamp time.Time    `yaml:"timestamp" json:"timestamp" csv:"timestamp" validate:"required"`
	// IsCompleted is true if the order has been filled or cancelled
	IsCompleted bool `yaml:"is_completed" json:"is_completed" csv:"is_completed"`
	// Status is the status of the order (PENDING, FILLED, CANCELLED, REJECTED, FAILED)
	Status OrderStatus `yaml:"status" json:"status" csv:"status"`
	// Reason records why the order was placed, e.g. "entry_long_spread" or "stop_out"
	Reason Reason `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
	// ZScore is the standardized spread value at the time the order was placed
	ZScore       float64      `yaml:"z_score" json:"z_score" csv:"z_score"`
	Fee          float64      `yaml:"fee" json:"fee" csv:"fee" validate:"gte=0"`
	PositionType PositionType `yaml:"position_type" json:"position_type" csv:"position_type" validate:"required,oneof=LONG SHORT"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}
