package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"go.uber.org/zap"
)

// BacktestEquityCurve journals the per-bar equity of a run in a DuckDB
// database and exports it as the run's equity.csv.
type BacktestEquityCurve struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewBacktestEquityCurve creates a new instance of BacktestEquityCurve.
func NewBacktestEquityCurve(logger *logger.Logger) (*BacktestEquityCurve, error) {
	// Create an in-memory DuckDB database
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))

		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection to ensure database is properly initialized
	if err := db.Ping(); err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		db.Close()

		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	curve := &BacktestEquityCurve{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	// Initialize the database tables
	if err := curve.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return curve, nil
}

// Append records the equity at one bar.
func (e *BacktestEquityCurve) Append(point types.EquityPoint) error {
	// Check for nil fields
	if e == nil || e.db == nil {
		return fmt.Errorf("backtest equity curve or database is nil")
	}

	insertQuery := e.sq.
		Insert("equity").
		Columns("time", "equity").
		Values(point.Time, point.Equity).
		RunWith(e.db)

	if _, err := insertQuery.Exec(); err != nil {
		return fmt.Errorf("failed to insert equity point: %w", err)
	}

	return nil
}

// GetPoints returns the recorded equity curve in time order.
func (e *BacktestEquityCurve) GetPoints() ([]types.EquityPoint, error) {
	// Check for nil fields
	if e == nil || e.db == nil {
		return nil, fmt.Errorf("backtest equity curve or database is nil")
	}

	selectQuery := e.sq.
		Select("time", "equity").
		From("equity").
		OrderBy("time ASC").
		RunWith(e.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve: %w", err)
	}
	defer rows.Close()

	var points []types.EquityPoint

	for rows.Next() {
		var point types.EquityPoint

		if err := rows.Scan(&point.Time, &point.Equity); err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}

		points = append(points, point)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity curve: %w", err)
	}

	return points, nil
}

// Write saves the equity curve to a CSV file in the specified directory.
func (e *BacktestEquityCurve) Write(path string) error {
	// Check for nil fields
	if e == nil || e.db == nil || e.logger == nil {
		return fmt.Errorf("backtest equity curve, database, or logger is nil")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Export the curve to CSV
	equityPath := filepath.Join(path, "equity.csv")

	_, err := e.db.Exec(fmt.Sprintf(`COPY (SELECT time, equity FROM equity ORDER BY time) TO '%s' (FORMAT CSV, HEADER)`, equityPath))
	if err != nil {
		return fmt.Errorf("failed to export equity curve to CSV: %w", err)
	}

	e.logger.Info("Successfully exported equity curve to CSV file",
		zap.String("equity", equityPath),
	)

	return nil
}

// Cleanup resets the database state.
func (e *BacktestEquityCurve) Cleanup() error {
	// Check for nil db
	if e == nil || e.db == nil {
		return fmt.Errorf("backtest equity curve or database is nil")
	}

	_, err := e.db.Exec(`DROP TABLE IF EXISTS equity`)
	if err != nil {
		return fmt.Errorf("failed to cleanup equity table: %w", err)
	}

	// Reinitialize
	return e.initialize()
}

// Close closes the database connection.
func (e *BacktestEquityCurve) Close() error {
	if e == nil || e.db == nil {
		return nil
	}

	return e.db.Close()
}

// initialize creates the necessary tables for storing the equity curve.
func (e *BacktestEquityCurve) initialize() error {
	// Check for nil db
	if e == nil || e.db == nil {
		return fmt.Errorf("backtest equity curve or database is nil")
	}

	_, err := e.db.Exec(`
		CREATE TABLE IF NOT EXISTS equity (
			time TIMESTAMP,
			equity DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create equity table: %w", err)
	}

	return nil
}
