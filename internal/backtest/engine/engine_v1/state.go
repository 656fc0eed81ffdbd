package engine

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BacktestState journals every order, fill, and per-bar calculation of a run
// into an in-memory DuckDB database. Positions are never stored directly;
// they are recomputed from the trade flows, which keeps entry averages and
// realized pnl reproducible from the journal alone.
type BacktestState struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

func NewBacktestState(logger *logger.Logger) (*BacktestState, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &BacktestState{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the necessary tables for tracking orders, trades, and
// per-bar calculations
func (b *BacktestState) Initialize() error {
	// Create orders table with string-based order_id
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			pair TEXT,
			symbol TEXT,
			side TEXT,
			position_type TEXT,
			quantity DOUBLE,
			price DOUBLE,
			timestamp TIMESTAMP,
			is_completed BOOLEAN,
			status TEXT,
			reason TEXT,
			message TEXT,
			z_score DOUBLE,
			fee DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}

	// Create trades table
	_, err = b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			order_id TEXT,
			pair TEXT,
			symbol TEXT,
			side TEXT,
			position_type TEXT,
			quantity DOUBLE,
			price DOUBLE,
			timestamp TIMESTAMP,
			is_completed BOOLEAN,
			status TEXT,
			reason TEXT,
			message TEXT,
			z_score DOUBLE,
			executed_at TIMESTAMP,
			executed_qty DOUBLE,
			executed_price DOUBLE,
			commission DOUBLE,
			pnl DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}

	// Create calc_log table recording the model internals for every bar
	_, err = b.db.Exec(`
		CREATE TABLE IF NOT EXISTS calc_log (
			timestamp TIMESTAMP,
			pair TEXT,
			price_a DOUBLE,
			price_b DOUBLE,
			beta DOUBLE,
			alpha DOUBLE,
			spread DOUBLE,
			z_score DOUBLE,
			state TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create calc_log table: %w", err)
	}

	return nil
}

// UpdateResult contains the results of processing an order
type UpdateResult struct {
	Order         types.Order
	Trade         types.Trade
	IsNewPosition bool
}

// Update processes orders and updates trades. Side encodes the flow
// direction of the position named by PositionType: BUY opens, SELL closes.
// Closing fills realize pnl against the average entry price of that side.
func (b *BacktestState) Update(orders []types.Order) ([]UpdateResult, error) {
	results := make([]UpdateResult, 0, len(orders))

	for _, order := range orders {
		orderID := order.OrderID
		if orderID == "" {
			orderID = uuid.New().String()
		}

		// Start transaction
		tx, err := b.db.Begin()
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		// Insert order
		insertQuery := b.sq.
			Insert("orders").
			Columns(
				"order_id", "pair", "symbol", "side", "position_type", "quantity", "price",
				"timestamp", "is_completed", "status", "reason", "message", "z_score", "fee",
			).
			Values(
				orderID, order.Pair, order.Symbol, order.Side, order.PositionType,
				order.Quantity, order.Price, order.Timestamp, order.IsCompleted,
				order.Status, order.Reason.Reason, order.Reason.Message, order.ZScore, order.Fee,
			).
			RunWith(tx)

		_, err = insertQuery.Exec()
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert order: %w", err)
		}

		// Get current position
		currentPosition, err := b.GetPosition(order.Symbol)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to get position: %w", err)
		}

		// Calculate PnL if closing a position. The average entry price of a
		// long side includes its entry fees; the average entry price of a
		// short side is net of them.
		var pnl float64 = 0

		if order.Side == types.PurchaseTypeSell {
			switch order.PositionType {
			case types.PositionTypeLong:
				if currentPosition.TotalLongPositionQuantity > 0 {
					avgEntryPrice := currentPosition.GetAverageLongPositionEntryPrice()
					entryDec := decimal.NewFromFloat(order.Quantity).Mul(decimal.NewFromFloat(avgEntryPrice))
					exitDec := decimal.NewFromFloat(order.Quantity).Mul(decimal.NewFromFloat(order.Price)).Sub(decimal.NewFromFloat(order.Fee))
					pnl, _ = exitDec.Sub(entryDec).Float64()
				}
			case types.PositionTypeShort:
				if currentPosition.TotalShortPositionQuantity > 0 {
					avgEntryPrice := currentPosition.GetAverageShortPositionEntryPrice()
					entryDec := decimal.NewFromFloat(order.Quantity).Mul(decimal.NewFromFloat(avgEntryPrice))
					coverDec := decimal.NewFromFloat(order.Quantity).Mul(decimal.NewFromFloat(order.Price)).Add(decimal.NewFromFloat(order.Fee))
					pnl, _ = entryDec.Sub(coverDec).Float64()
				}
			}
		}

		// Create trade record
		trade := types.Trade{
			Order: types.Order{
				OrderID:      orderID,
				Pair:         order.Pair,
				Symbol:       order.Symbol,
				Side:         order.Side,
				Quantity:     order.Quantity,
				Price:        order.Price,
				Timestamp:    order.Timestamp,
				IsCompleted:  order.IsCompleted,
				Status:       order.Status,
				Reason:       order.Reason,
				ZScore:       order.ZScore,
				Fee:          order.Fee,
				PositionType: order.PositionType,
			},
			ExecutedAt:    order.Timestamp,
			ExecutedQty:   order.Quantity,
			ExecutedPrice: order.Price,
			Fee:           order.Fee,
			PnL:           pnl,
		}

		// Insert trade using Squirrel
		insertTradeQuery := b.sq.
			Insert("trades").
			Columns(
				"order_id", "pair", "symbol", "side", "position_type", "quantity", "price",
				"timestamp", "is_completed", "status", "reason", "message", "z_score",
				"executed_at", "executed_qty", "executed_price", "commission", "pnl",
			).
			Values(
				orderID, trade.Order.Pair, trade.Order.Symbol, trade.Order.Side, trade.Order.PositionType,
				trade.Order.Quantity, trade.Order.Price, trade.Order.Timestamp, trade.Order.IsCompleted,
				trade.Order.Status, trade.Order.Reason.Reason, trade.Order.Reason.Message, trade.Order.ZScore,
				trade.ExecutedAt, trade.ExecutedQty, trade.ExecutedPrice, trade.Fee, trade.PnL,
			).
			RunWith(tx)

		_, err = insertTradeQuery.Exec()
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert trade: %w", err)
		}

		// Determine if this fill opens a fresh position on its side
		isNewPosition := order.Side == types.PurchaseTypeBuy &&
			((order.PositionType == types.PositionTypeLong && currentPosition.TotalLongPositionQuantity == 0) ||
				(order.PositionType == types.PositionTypeShort && currentPosition.TotalShortPositionQuantity == 0))

		// Commit transaction
		err = tx.Commit()
		if err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		// Add result
		order.OrderID = orderID
		results = append(results, UpdateResult{
			Order:         order,
			Trade:         trade,
			IsNewPosition: isNewPosition,
		})
	}

	return results, nil
}

// GetPosition retrieves the current position for a symbol by calculating from
// trades. Long and short flows are accumulated independently.
func (b *BacktestState) GetPosition(symbol string) (types.Position, error) {
	// Create a complex query with CTEs using raw SQL as Squirrel doesn't directly support this case
	query := `
		WITH long_in AS (
			SELECT
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount,
				MIN(executed_at) as first_trade_time
			FROM trades
			WHERE symbol = ? AND side = ? AND position_type = ?
		),
		long_out AS (
			SELECT
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount
			FROM trades
			WHERE symbol = ? AND side = ? AND position_type = ?
		),
		short_in AS (
			SELECT
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount,
				MIN(executed_at) as first_trade_time
			FROM trades
			WHERE symbol = ? AND side = ? AND position_type = ?
		),
		short_out AS (
			SELECT
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount
			FROM trades
			WHERE symbol = ? AND side = ? AND position_type = ?
		)
		SELECT
			? as symbol,
			COALESCE(li.qty, 0) - COALESCE(lo.qty, 0) as long_quantity,
			COALESCE(si.qty, 0) - COALESCE(so.qty, 0) as short_quantity,
			COALESCE(li.qty, 0) as total_long_in_qty,
			COALESCE(lo.qty, 0) as total_long_out_qty,
			COALESCE(li.amount, 0) as total_long_in_amount,
			COALESCE(lo.amount, 0) as total_long_out_amount,
			COALESCE(si.qty, 0) as total_short_in_qty,
			COALESCE(so.qty, 0) as total_short_out_qty,
			COALESCE(si.amount, 0) as total_short_in_amount,
			COALESCE(so.amount, 0) as total_short_out_amount,
			COALESCE(li.fee, 0) as total_long_in_fee,
			COALESCE(lo.fee, 0) as total_long_out_fee,
			COALESCE(si.fee, 0) as total_short_in_fee,
			COALESCE(so.fee, 0) as total_short_out_fee,
			COALESCE(LEAST(li.first_trade_time, si.first_trade_time), li.first_trade_time, si.first_trade_time, CURRENT_TIMESTAMP) as open_timestamp,
			MAX(t.pair) as pair
		FROM trades t
		LEFT JOIN long_in li ON 1=1
		LEFT JOIN long_out lo ON 1=1
		LEFT JOIN short_in si ON 1=1
		LEFT JOIN short_out so ON 1=1
		WHERE t.symbol = ?
		GROUP BY li.qty, lo.qty, li.amount, lo.amount, li.fee, lo.fee, li.first_trade_time,
			si.qty, so.qty, si.amount, so.amount, si.fee, so.fee, si.first_trade_time
	`

	args := []interface{}{
		symbol, types.PurchaseTypeBuy, types.PositionTypeLong,
		symbol, types.PurchaseTypeSell, types.PositionTypeLong,
		symbol, types.PurchaseTypeBuy, types.PositionTypeShort,
		symbol, types.PurchaseTypeSell, types.PositionTypeShort,
		symbol,
		symbol,
	}

	var position types.Position
	err := b.db.QueryRow(query, args...).Scan(
		&position.Symbol,
		&position.TotalLongPositionQuantity,
		&position.TotalShortPositionQuantity,
		&position.TotalLongInPositionQuantity,
		&position.TotalLongOutPositionQuantity,
		&position.TotalLongInPositionAmount,
		&position.TotalLongOutPositionAmount,
		&position.TotalShortInPositionQuantity,
		&position.TotalShortOutPositionQuantity,
		&position.TotalShortInPositionAmount,
		&position.TotalShortOutPositionAmount,
		&position.TotalLongInFee,
		&position.TotalLongOutFee,
		&position.TotalShortInFee,
		&position.TotalShortOutFee,
		&position.OpenTimestamp,
		&position.Pair,
	)

	if err == sql.ErrNoRows {
		return types.Position{
			Symbol:        symbol,
			OpenTimestamp: time.Time{},
		}, nil
	}

	if err != nil {
		return types.Position{}, fmt.Errorf("failed to query position: %w", err)
	}

	return position, nil
}

// GetAllPositions returns every symbol with a non-flat side, calculated from
// trades.
func (b *BacktestState) GetAllPositions() ([]types.Position, error) {
	// Using raw SQL for CTE query - Squirrel doesn't natively support this complex case
	query := `
		WITH long_in AS (
			SELECT symbol,
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount,
				MIN(executed_at) as first_trade_time,
				MAX(pair) as pair
			FROM trades
			WHERE side = ? AND position_type = ?
			GROUP BY symbol
		),
		long_out AS (
			SELECT symbol,
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount
			FROM trades
			WHERE side = ? AND position_type = ?
			GROUP BY symbol
		),
		short_in AS (
			SELECT symbol,
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount,
				MIN(executed_at) as first_trade_time,
				MAX(pair) as pair
			FROM trades
			WHERE side = ? AND position_type = ?
			GROUP BY symbol
		),
		short_out AS (
			SELECT symbol,
				SUM(executed_qty) as qty,
				SUM(commission) as fee,
				SUM(executed_qty * executed_price) as amount
			FROM trades
			WHERE side = ? AND position_type = ?
			GROUP BY symbol
		),
		symbols AS (
			SELECT symbol FROM long_in
			UNION
			SELECT symbol FROM short_in
		)
		SELECT
			sym.symbol,
			COALESCE(li.qty, 0) - COALESCE(lo.qty, 0) as long_quantity,
			COALESCE(si.qty, 0) - COALESCE(so.qty, 0) as short_quantity,
			COALESCE(li.qty, 0) as total_long_in_qty,
			COALESCE(lo.qty, 0) as total_long_out_qty,
			COALESCE(li.amount, 0) as total_long_in_amount,
			COALESCE(lo.amount, 0) as total_long_out_amount,
			COALESCE(si.qty, 0) as total_short_in_qty,
			COALESCE(so.qty, 0) as total_short_out_qty,
			COALESCE(si.amount, 0) as total_short_in_amount,
			COALESCE(so.amount, 0) as total_short_out_amount,
			COALESCE(li.fee, 0) as total_long_in_fee,
			COALESCE(lo.fee, 0) as total_long_out_fee,
			COALESCE(si.fee, 0) as total_short_in_fee,
			COALESCE(so.fee, 0) as total_short_out_fee,
			COALESCE(LEAST(li.first_trade_time, si.first_trade_time), li.first_trade_time, si.first_trade_time, CURRENT_TIMESTAMP) as open_timestamp,
			COALESCE(li.pair, si.pair, '') as pair
		FROM symbols sym
		LEFT JOIN long_in li ON li.symbol = sym.symbol
		LEFT JOIN long_out lo ON lo.symbol = sym.symbol
		LEFT JOIN short_in si ON si.symbol = sym.symbol
		LEFT JOIN short_out so ON so.symbol = sym.symbol
		WHERE COALESCE(li.qty, 0) - COALESCE(lo.qty, 0) != 0
			OR COALESCE(si.qty, 0) - COALESCE(so.qty, 0) != 0
		ORDER BY sym.symbol
	`

	rows, err := b.db.Query(query,
		types.PurchaseTypeBuy, types.PositionTypeLong,
		types.PurchaseTypeSell, types.PositionTypeLong,
		types.PurchaseTypeBuy, types.PositionTypeShort,
		types.PurchaseTypeSell, types.PositionTypeShort,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []types.Position

	for rows.Next() {
		var position types.Position

		err := rows.Scan(
			&position.Symbol,
			&position.TotalLongPositionQuantity,
			&position.TotalShortPositionQuantity,
			&position.TotalLongInPositionQuantity,
			&position.TotalLongOutPositionQuantity,
			&position.TotalLongInPositionAmount,
			&position.TotalLongOutPositionAmount,
			&position.TotalShortInPositionQuantity,
			&position.TotalShortOutPositionQuantity,
			&position.TotalShortInPositionAmount,
			&position.TotalShortOutPositionAmount,
			&position.TotalLongInFee,
			&position.TotalLongOutFee,
			&position.TotalShortInFee,
			&position.TotalShortOutFee,
			&position.OpenTimestamp,
			&position.Pair,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		positions = append(positions, position)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// GetAllTrades returns all trades from the database
func (b *BacktestState) GetAllTrades() ([]types.Trade, error) {
	selectQuery := b.sq.
		Select(
			"order_id", "pair", "symbol", "side", "position_type", "quantity", "price",
			"timestamp", "is_completed", "status", "reason", "message", "z_score",
			"executed_at", "executed_qty", "executed_price", "commission", "pnl",
		).
		From("trades").
		OrderBy("executed_at ASC, symbol ASC").
		RunWith(b.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var trade types.Trade

		err := rows.Scan(
			&trade.Order.OrderID,
			&trade.Order.Pair,
			&trade.Order.Symbol,
			&trade.Order.Side,
			&trade.Order.PositionType,
			&trade.Order.Quantity,
			&trade.Order.Price,
			&trade.Order.Timestamp,
			&trade.Order.IsCompleted,
			&trade.Order.Status,
			&trade.Order.Reason.Reason,
			&trade.Order.Reason.Message,
			&trade.Order.ZScore,
			&trade.ExecutedAt,
			&trade.ExecutedQty,
			&trade.ExecutedPrice,
			&trade.Fee,
			&trade.PnL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// GetOrderById returns an order by its id
func (b *BacktestState) GetOrderById(orderID string) (optional.Option[types.Order], error) {
	query := b.sq.
		Select(
			"order_id", "pair", "symbol", "side", "position_type", "quantity", "price",
			"timestamp", "is_completed", "status", "reason", "message", "z_score", "fee",
		).
		From("orders").
		Where(squirrel.Eq{"order_id": orderID}).
		RunWith(b.db)

	var order types.Order
	err := query.QueryRow().Scan(
		&order.OrderID,
		&order.Pair,
		&order.Symbol,
		&order.Side,
		&order.PositionType,
		&order.Quantity,
		&order.Price,
		&order.Timestamp,
		&order.IsCompleted,
		&order.Status,
		&order.Reason.Reason,
		&order.Reason.Message,
		&order.ZScore,
		&order.Fee,
	)
	if err != nil {
		// check if error is no rows in result set
		if err == sql.ErrNoRows {
			return optional.None[types.Order](), nil
		}

		return optional.None[types.Order](), fmt.Errorf("failed to get order by id: %w", err)
	}

	return optional.Some(order), nil
}

// CalcRow is one per-bar record of the spread model internals.
type CalcRow struct {
	Timestamp time.Time
	Pair      string
	PriceA    float64
	PriceB    float64
	Beta      float64
	Alpha     float64
	Spread    float64
	// ZScore is None while the rolling statistics are still warming up or
	// the spread variance collapsed.
	ZScore optional.Option[float64]
	State  types.PositionState
}

// LogCalculation appends one row to the calc_log table.
func (b *BacktestState) LogCalculation(row CalcRow) error {
	var zScore interface{}
	if z, err := row.ZScore.Take(); err == nil {
		zScore = z
	}

	insertQuery := b.sq.
		Insert("calc_log").
		Columns("timestamp", "pair", "price_a", "price_b", "beta", "alpha", "spread", "z_score", "state").
		Values(row.Timestamp, row.Pair, row.PriceA, row.PriceB, row.Beta, row.Alpha, row.Spread, zScore, row.State).
		RunWith(b.db)

	if _, err := insertQuery.Exec(); err != nil {
		return fmt.Errorf("failed to insert calc_log row: %w", err)
	}

	return nil
}

// GetCalcLog returns the per-bar calculation log in timestamp order.
func (b *BacktestState) GetCalcLog() ([]CalcRow, error) {
	selectQuery := b.sq.
		Select("timestamp", "pair", "price_a", "price_b", "beta", "alpha", "spread", "z_score", "state").
		From("calc_log").
		OrderBy("timestamp ASC").
		RunWith(b.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query calc_log: %w", err)
	}
	defer rows.Close()

	var log []CalcRow

	for rows.Next() {
		var (
			row    CalcRow
			zScore sql.NullFloat64
		)

		err := rows.Scan(
			&row.Timestamp,
			&row.Pair,
			&row.PriceA,
			&row.PriceB,
			&row.Beta,
			&row.Alpha,
			&row.Spread,
			&zScore,
			&row.State,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calc_log row: %w", err)
		}

		row.ZScore = optional.None[float64]()
		if zScore.Valid {
			row.ZScore = optional.Some(zScore.Float64)
		}

		log = append(log, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calc_log: %w", err)
	}

	return log, nil
}

// Cleanup resets the database state
func (b *BacktestState) Cleanup() error {
	// Use raw SQL for dropping tables - Squirrel doesn't have DROP syntax
	_, err := b.db.Exec(`
		DROP TABLE IF EXISTS calc_log;
		DROP TABLE IF EXISTS trades;
		DROP TABLE IF EXISTS orders;
	`)
	if err != nil {
		return fmt.Errorf("failed to cleanup tables: %w", err)
	}

	// Reinitialize
	return b.Initialize()
}

// Write saves the backtest results to Parquet files in the specified directory
func (b *BacktestState) Write(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Export trades to Parquet - using raw SQL as Squirrel doesn't support COPY
	tradesPath := filepath.Join(path, "trades.parquet")
	_, err := b.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, tradesPath))
	if err != nil {
		return fmt.Errorf("failed to export trades to Parquet: %w", err)
	}

	// Export orders to Parquet
	ordersPath := filepath.Join(path, "orders.parquet")
	_, err = b.db.Exec(fmt.Sprintf(`COPY orders TO '%s' (FORMAT PARQUET)`, ordersPath))
	if err != nil {
		return fmt.Errorf("failed to export orders to Parquet: %w", err)
	}

	// Export calc_log to Parquet
	calcLogPath := filepath.Join(path, "calc_log.parquet")
	_, err = b.db.Exec(fmt.Sprintf(`COPY calc_log TO '%s' (FORMAT PARQUET)`, calcLogPath))
	if err != nil {
		return fmt.Errorf("failed to export calc_log to Parquet: %w", err)
	}

	b.logger.Info("Successfully exported backtest results to Parquet files",
		zap.String("trades", tradesPath),
		zap.String("orders", ordersPath),
		zap.String("calc_log", calcLogPath),
	)

	return nil
}

// calculateTradeResult calculates the round-trip statistics for a pair. The
// two closing fills of a round trip share an executed_at timestamp, so
// round trips are closing fills grouped by time.
func (b *BacktestState) calculateTradeResult(pair string) (types.TradeResult, error) {
	// Using raw SQL for CTE query - Squirrel doesn't natively support CTEs well
	query := `
		WITH closes AS (
			SELECT executed_at, SUM(pnl) as pnl
			FROM trades
			WHERE pair = ? AND side = ?
			GROUP BY executed_at
		)
		SELECT
			COUNT(*) as total_trades,
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0) as winning_trades,
			COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0) as losing_trades,
			CASE WHEN COUNT(*) > 0 THEN CAST(COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0) AS DOUBLE) / COUNT(*) ELSE 0 END as win_rate
		FROM closes
	`

	var result types.TradeResult
	err := b.db.QueryRow(query, pair, types.PurchaseTypeSell).Scan(
		&result.NumberOfTrades,
		&result.NumberOfWinningTrades,
		&result.NumberOfLosingTrades,
		&result.WinRate,
	)
	if err != nil {
		return types.TradeResult{}, fmt.Errorf("failed to calculate trade result: %w", err)
	}

	return result, nil
}

// calculateTradeHoldingTime calculates the holding time statistics in
// seconds for a pair's round trips.
func (b *BacktestState) calculateTradeHoldingTime(pair string) (types.TradeHoldingTime, error) {
	// Using raw SQL for CTE query - Squirrel doesn't natively support this complex query
	query := `
		WITH opens AS (
			SELECT DISTINCT executed_at
			FROM trades
			WHERE pair = ? AND side = ?
		),
		closes AS (
			SELECT DISTINCT executed_at
			FROM trades
			WHERE pair = ? AND side = ?
		),
		trade_durations AS (
			SELECT EXTRACT(EPOCH FROM (c.executed_at - (
				SELECT MAX(o.executed_at) FROM opens o WHERE o.executed_at <= c.executed_at
			))) as duration
			FROM closes c
		)
		SELECT
			COALESCE(MIN(duration), 0) as min_duration,
			COALESCE(MAX(duration), 0) as max_duration,
			COALESCE(AVG(duration), 0) as avg_duration
		FROM trade_durations
	`

	var (
		holdingTime types.TradeHoldingTime
		minDuration float64
		maxDuration float64
		avgDuration float64
	)

	err := b.db.QueryRow(query, pair, types.PurchaseTypeBuy, pair, types.PurchaseTypeSell).Scan(
		&minDuration,
		&maxDuration,
		&avgDuration,
	)
	if err != nil {
		return types.TradeHoldingTime{}, fmt.Errorf("failed to calculate holding time: %w", err)
	}

	holdingTime.Min = int(math.Round(minDuration))
	holdingTime.Max = int(math.Round(maxDuration))
	holdingTime.Avg = int(math.Round(avgDuration))

	return holdingTime, nil
}

// calculateTotalFees calculates the total fees for a pair
func (b *BacktestState) calculateTotalFees(pair string) (float64, error) {
	// Using Squirrel for a simpler query
	query := b.sq.
		Select("COALESCE(SUM(commission), 0)").
		From("trades").
		Where(squirrel.Eq{"pair": pair}).
		RunWith(b.db)

	var totalFees float64

	err := query.QueryRow().Scan(&totalFees)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate total fees: %w", err)
	}

	return totalFees, nil
}

// GetStats returns the trade statistics of the pair. Open positions are
// marked to the given last prices for the unrealized pnl.
func (b *BacktestState) GetStats(pair types.PairInfo, lastPriceA, lastPriceB float64) (types.TradeStats, error) {
	pairStr := pair.String()

	// Calculate trade result
	tradeResult, err := b.calculateTradeResult(pairStr)
	if err != nil {
		return types.TradeStats{}, err
	}

	// Calculate holding time
	holdingTime, err := b.calculateTradeHoldingTime(pairStr)
	if err != nil {
		return types.TradeStats{}, err
	}

	// Calculate total fees
	totalFees, err := b.calculateTotalFees(pairStr)
	if err != nil {
		return types.TradeStats{}, err
	}

	tradePnl := types.TradePnl{}

	// Realized pnl over all closing fills
	realizedQuery := b.sq.
		Select("COALESCE(SUM(pnl), 0)").
		From("trades").
		Where(squirrel.Eq{"pair": pairStr}).
		RunWith(b.db)

	if err := realizedQuery.QueryRow().Scan(&tradePnl.RealizedPnL); err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to calculate realized pnl: %w", err)
	}

	// Unrealized pnl of whatever is still open, marked to the last prices
	lastPrices := map[string]float64{
		pair.SymbolA: lastPriceA,
		pair.SymbolB: lastPriceB,
	}

	for symbol, lastPrice := range lastPrices {
		position, err := b.GetPosition(symbol)
		if err != nil {
			return types.TradeStats{}, err
		}

		unrealized, err := unrealizedPnl(position, lastPrice)
		if err != nil {
			return types.TradeStats{}, err
		}

		tradePnl.UnrealizedPnL += unrealized
	}

	tradePnl.TotalPnL = tradePnl.RealizedPnL + tradePnl.UnrealizedPnL

	// Calculate maximum loss and maximum profit over round trips
	maxLossProfit := `
		WITH closes AS (
			SELECT executed_at, SUM(pnl) as pnl
			FROM trades
			WHERE pair = ? AND side = ?
			GROUP BY executed_at
		)
		SELECT COALESCE(MIN(pnl), 0) as max_loss, COALESCE(MAX(pnl), 0) as max_profit
		FROM closes
	`

	var maxLoss, maxProfit float64
	if err := b.db.QueryRow(maxLossProfit, pairStr, types.PurchaseTypeSell).Scan(&maxLoss, &maxProfit); err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to calculate max loss/profit: %w", err)
	}

	if maxLoss < 0 {
		tradePnl.MaximumLoss = maxLoss
	}

	if maxProfit > 0 {
		tradePnl.MaximumProfit = maxProfit
	}

	return types.TradeStats{
		Pair:             pair,
		TradeResult:      tradeResult,
		TotalFees:        totalFees,
		TradeHoldingTime: holdingTime,
		TradePnl:         tradePnl,
	}, nil
}

// unrealizedPnl marks the open sides of a position to the last price.
func unrealizedPnl(position types.Position, lastPrice float64) (float64, error) {
	total := decimal.Zero

	if openQty := position.TotalLongPositionQuantity; openQty > 0 {
		entryDec := decimal.NewFromFloat(openQty).Mul(decimal.NewFromFloat(position.GetAverageLongPositionEntryPrice()))
		markDec := decimal.NewFromFloat(openQty).Mul(decimal.NewFromFloat(lastPrice))
		total = total.Add(markDec.Sub(entryDec))
	}

	if openQty := position.TotalShortPositionQuantity; openQty > 0 {
		entryDec := decimal.NewFromFloat(openQty).Mul(decimal.NewFromFloat(position.GetAverageShortPositionEntryPrice()))
		markDec := decimal.NewFromFloat(openQty).Mul(decimal.NewFromFloat(lastPrice))
		total = total.Add(entryDec.Sub(markDec))
	}

	result, _ := total.Float64()

	return result, nil
}
