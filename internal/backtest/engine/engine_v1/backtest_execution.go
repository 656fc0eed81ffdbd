package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/internal/utils"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
	"go.uber.org/zap"
)

// pairExecutor turns position-state transitions into per-leg fills. It owns
// the cash balance and the open-position bookkeeping of a single run; every
// fill is journaled through the backtest state.
type pairExecutor struct {
	state            *BacktestState
	pair             types.PairInfo
	initialBalance   float64
	balance          float64
	commission       commission_fee.CommissionFee
	decimalPrecision int
	notionalPerTrade float64
	logger           *logger.Logger

	position  types.PositionState
	qtyA      float64
	qtyB      float64
	entryTime time.Time
	entryZ    float64
}

func newPairExecutor(
	state *BacktestState,
	pair types.PairInfo,
	initialBalance float64,
	notionalPerTrade float64,
	commission commission_fee.CommissionFee,
	decimalPrecision int,
	logger *logger.Logger,
) *pairExecutor {
	return &pairExecutor{
		state:            state,
		pair:             pair,
		initialBalance:   initialBalance,
		balance:          initialBalance,
		commission:       commission,
		decimalPrecision: decimalPrecision,
		notionalPerTrade: notionalPerTrade,
		logger:           logger,
		position:         types.PositionStateFlat,
	}
}

// Balance returns the current cash balance.
func (e *pairExecutor) Balance() float64 {
	return e.balance
}

// Position returns the spread position currently held.
func (e *pairExecutor) Position() types.PositionState {
	return e.position
}

// Quantities returns the open quantities of the two legs. Both are zero when
// the executor is flat.
func (e *pairExecutor) Quantities() (float64, float64) {
	return e.qtyA, e.qtyB
}

// Equity marks the open legs to the given close prices and adds the cash
// balance. A long leg contributes its market value, a short leg subtracts
// its buyback cost.
func (e *pairExecutor) Equity(closeA float64, closeB float64) float64 {
	switch e.position {
	case types.PositionStateLongSpread:
		return e.balance + e.qtyA*closeA - e.qtyB*closeB
	case types.PositionStateShortSpread:
		return e.balance - e.qtyA*closeA + e.qtyB*closeB
	default:
		return e.balance
	}
}

// Open sizes and fills both legs of a spread entry at the given prices. Leg A
// receives the configured notional, leg B offsets it at the hedge ratio. The
// entry is skipped, not failed, when a fill price is non-positive or a leg
// quantity sizes to zero; the boolean reports whether a position was opened.
func (e *pairExecutor) Open(barTime time.Time, direction types.PositionState, priceA float64, priceB float64, beta float64, zScore float64, reason string) (bool, error) {
	if e.position != types.PositionStateFlat {
		return false, errors.Newf(errors.ErrCodeInvalidTransition, "cannot open %s while holding %s", direction, e.position)
	}

	if direction != types.PositionStateLongSpread && direction != types.PositionStateShortSpread {
		return false, errors.Newf(errors.ErrCodeInvalidTransition, "cannot open position state %s", direction)
	}

	if priceA <= 0 || priceB <= 0 {
		e.logger.Warn("Skipping entry on non-positive fill price",
			zap.String("pair", e.pair.String()),
			zap.Float64("price_a", priceA),
			zap.Float64("price_b", priceB),
		)

		return false, nil
	}

	qtyA, qtyB := utils.LegQuantities(e.notionalPerTrade, priceA, beta, e.decimalPrecision)
	if qtyA <= 0 || qtyB <= 0 {
		e.logger.Warn("Skipping entry, leg quantity is non-positive after sizing",
			zap.String("pair", e.pair.String()),
			zap.Float64("qty_a", qtyA),
			zap.Float64("qty_b", qtyB),
			zap.Float64("beta", beta),
		)

		return false, nil
	}

	posA, posB := types.PositionTypeLong, types.PositionTypeShort
	if direction == types.PositionStateShortSpread {
		posA, posB = types.PositionTypeShort, types.PositionTypeLong
	}

	orders := []types.Order{
		e.legOrder(barTime, e.pair.SymbolA, types.PurchaseTypeBuy, posA, qtyA, priceA, zScore, reason),
		e.legOrder(barTime, e.pair.SymbolB, types.PurchaseTypeBuy, posB, qtyB, priceB, zScore, reason),
	}

	if _, err := e.fill(orders); err != nil {
		return false, err
	}

	e.position = direction
	e.qtyA = qtyA
	e.qtyB = qtyB
	e.entryTime = barTime
	e.entryZ = zScore

	return true, nil
}

// Close unwinds both legs of the open position at the given prices and
// returns the finished round trip. Closing while flat is a no-op; the
// boolean reports whether a round trip completed.
func (e *pairExecutor) Close(barTime time.Time, priceA float64, priceB float64, zScore float64, reason string) (types.RoundTrip, bool, error) {
	if e.position == types.PositionStateFlat {
		return types.RoundTrip{}, false, nil
	}

	if priceA <= 0 || priceB <= 0 {
		return types.RoundTrip{}, false, errors.Newf(errors.ErrCodeMarketDataMissing,
			"cannot close %s on non-positive prices a=%f b=%f", e.position, priceA, priceB)
	}

	posA, posB := types.PositionTypeLong, types.PositionTypeShort
	if e.position == types.PositionStateShortSpread {
		posA, posB = types.PositionTypeShort, types.PositionTypeLong
	}

	orders := []types.Order{
		e.legOrder(barTime, e.pair.SymbolA, types.PurchaseTypeSell, posA, e.qtyA, priceA, zScore, reason),
		e.legOrder(barTime, e.pair.SymbolB, types.PurchaseTypeSell, posB, e.qtyB, priceB, zScore, reason),
	}

	results, err := e.fill(orders)
	if err != nil {
		return types.RoundTrip{}, false, err
	}

	var pnl float64
	for _, result := range results {
		pnl += result.Trade.PnL
	}

	roundTrip := types.RoundTrip{
		Direction:      e.position,
		EntryTimestamp: e.entryTime,
		ExitTimestamp:  barTime,
		EntryZ:         e.entryZ,
		ExitZ:          zScore,
		PnL:            pnl,
	}

	e.position = types.PositionStateFlat
	e.qtyA = 0
	e.qtyB = 0
	e.entryTime = time.Time{}
	e.entryZ = 0

	return roundTrip, true, nil
}

// Reset returns the executor to its initial state for the next run.
func (e *pairExecutor) Reset() {
	e.balance = e.initialBalance
	e.position = types.PositionStateFlat
	e.qtyA = 0
	e.qtyB = 0
	e.entryTime = time.Time{}
	e.entryZ = 0
}

// fill validates and journals the leg orders, then settles their cash flows
// against the balance.
func (e *pairExecutor) fill(orders []types.Order) ([]UpdateResult, error) {
	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return nil, err
		}
	}

	results, err := e.state.Update(orders)
	if err != nil {
		return nil, err
	}

	for _, order := range orders {
		e.balance += fillCashFlow(order)
	}

	return results, nil
}

func (e *pairExecutor) legOrder(barTime time.Time, symbol string, side types.PurchaseType, positionType types.PositionType, quantity float64, price float64, zScore float64, reason string) types.Order {
	return types.Order{
		OrderID:      uuid.New().String(),
		Pair:         e.pair.String(),
		Symbol:       symbol,
		Side:         side,
		Quantity:     quantity,
		Price:        price,
		Timestamp:    barTime,
		IsCompleted:  true,
		Status:       types.OrderStatusFilled,
		Reason:       types.Reason{Reason: reason, Message: fmt.Sprintf("%s at z=%.4f", reason, zScore)},
		ZScore:       zScore,
		Fee:          e.commission.Calculate(quantity, price),
		PositionType: positionType,
	}
}

// fillCashFlow returns the signed cash movement of a fill. Opening a long or
// covering a short costs cash; opening a short or selling a long raises it.
// Fees always reduce cash.
func fillCashFlow(order types.Order) float64 {
	gross := order.Quantity * order.Price

	outflow := (order.Side == types.PurchaseTypeBuy) == (order.PositionType == types.PositionTypeLong)
	if outflow {
		return -(gross + order.Fee)
	}

	return gross - order.Fee
}
