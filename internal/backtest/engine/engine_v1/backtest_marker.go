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

// BacktestMarker records every signal of a run together with the bar it
// fired on in a DuckDB database. Marks are what the report renderer pins
// onto the z-score chart.
type BacktestMarker struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewBacktestMarker creates a new instance of BacktestMarker.
func NewBacktestMarker(logger *logger.Logger) (*BacktestMarker, error) {
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

	marker := &BacktestMarker{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	// Initialize the database tables
	if err := marker.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return marker, nil
}

// Mark records a signal together with the aligned bar it fired on. The
// annotation styling is derived from the signal kind.
func (m *BacktestMarker) Mark(bar types.PairBar, signal types.Signal, message string) error {
	// Check for nil fields
	if m == nil || m.db == nil {
		return fmt.Errorf("backtest marker or database is nil")
	}

	// Get the next ID from the sequence
	var nextID int

	err := m.db.QueryRow("SELECT nextval('mark_id_seq')").Scan(&nextID)
	if err != nil {
		return fmt.Errorf("failed to get next ID from sequence: %w", err)
	}

	mark := types.MarkForSignal(signal, message)
	pair := bar.A.Symbol + "/" + bar.B.Symbol

	// Insert the mark using Squirrel
	insertQuery := m.sq.
		Insert("marks").
		Columns(
			"id", "time", "pair", "close_a", "close_b", "z_score",
			"from_state", "to_state", "kind", "color", "shape", "title", "message", "category",
		).
		Values(
			nextID, signal.Time, pair, bar.A.Close, bar.B.Close, signal.ZScore,
			string(signal.FromState), string(signal.ToState), string(signal.Kind),
			string(mark.Color), string(mark.Shape), mark.Title, mark.Message, mark.Category,
		).
		RunWith(m.db)

	_, err = insertQuery.Exec()
	if err != nil {
		return fmt.Errorf("failed to insert mark: %w", err)
	}

	return nil
}

// GetMarks returns all recorded marks in signal order.
func (m *BacktestMarker) GetMarks() ([]types.Mark, error) {
	// Check for nil fields
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("backtest marker or database is nil")
	}

	// Query all marks using Squirrel
	selectQuery := m.sq.
		Select(
			"time", "z_score", "from_state", "to_state", "kind",
			"color", "shape", "title", "message", "category",
		).
		From("marks").
		OrderBy("id ASC").
		RunWith(m.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query marks: %w", err)
	}
	defer rows.Close()

	var marks []types.Mark

	for rows.Next() {
		var (
			mark      types.Mark
			fromState string
			toState   string
			kind      string
			color     string
			shape     string
		)

		err := rows.Scan(
			&mark.Signal.Time,
			&mark.Signal.ZScore,
			&fromState,
			&toState,
			&kind,
			&color,
			&shape,
			&mark.Title,
			&mark.Message,
			&mark.Category,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mark: %w", err)
		}

		mark.Signal.FromState = types.PositionState(fromState)
		mark.Signal.ToState = types.PositionState(toState)
		mark.Signal.Kind = types.SignalKind(kind)
		mark.Color = types.MarkColor(color)
		mark.Shape = types.MarkShape(shape)

		marks = append(marks, mark)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marks: %w", err)
	}

	return marks, nil
}

// Write saves the marks to a Parquet file in the specified directory.
func (m *BacktestMarker) Write(path string) error {
	// Check for nil fields
	if m == nil || m.db == nil || m.logger == nil {
		return fmt.Errorf("backtest marker, database, or logger is nil")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Export marks to Parquet
	signalsPath := filepath.Join(path, "signals.parquet")

	_, err := m.db.Exec(fmt.Sprintf(`COPY marks TO '%s' (FORMAT PARQUET)`, signalsPath))
	if err != nil {
		return fmt.Errorf("failed to export marks to Parquet: %w", err)
	}

	m.logger.Info("Successfully exported signal marks to Parquet file",
		zap.String("signals", signalsPath),
	)

	return nil
}

// Cleanup resets the database state.
func (m *BacktestMarker) Cleanup() error {
	// Check for nil db
	if m == nil || m.db == nil {
		return fmt.Errorf("backtest marker or database is nil")
	}

	// Use raw SQL for dropping table and sequence
	_, err := m.db.Exec(`
		DROP TABLE IF EXISTS marks;
		DROP SEQUENCE IF EXISTS mark_id_seq;
	`)
	if err != nil {
		return fmt.Errorf("failed to cleanup marks table: %w", err)
	}

	// Reinitialize
	return m.initialize()
}

// Close closes the database connection.
func (m *BacktestMarker) Close() error {
	if m == nil || m.db == nil {
		return nil
	}

	return m.db.Close()
}

// initialize creates the necessary tables for storing marks.
func (m *BacktestMarker) initialize() error {
	// Check for nil db
	if m == nil || m.db == nil {
		return fmt.Errorf("backtest marker or database is nil")
	}

	// Create sequence for mark IDs
	_, err := m.db.Exec(`CREATE SEQUENCE IF NOT EXISTS mark_id_seq`)
	if err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}

	// Create marks table
	_, err = m.db.Exec(`
		CREATE TABLE IF NOT EXISTS marks (
			id INTEGER PRIMARY KEY,
			time TIMESTAMP,
			pair TEXT,
			close_a DOUBLE,
			close_b DOUBLE,
			z_score DOUBLE,
			from_state TEXT,
			to_state TEXT,
			kind TEXT,
			color TEXT,
			shape TEXT,
			title TEXT,
			message TEXT,
			category TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create marks table: %w", err)
	}

	return nil
}
