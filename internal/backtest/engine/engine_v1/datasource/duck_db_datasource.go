package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
	"go.uber.org/zap"
)

// pairColumns is the column list of the aligned pair_data view, leg A first.
const pairColumns = `time,
	open_a, high_a, low_a, close_a, volume_a,
	open_b, high_b, low_b, close_b, volume_b`

type DuckDBPairDataSource struct {
	db     *sql.DB
	pair   types.PairInfo
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewPairDataSource creates a new DuckDB data source instance for the given
// pair. The path parameter specifies the DuckDB database file location
// (":memory:" for an ephemeral database). This is distinct from Initialize()
// which loads the two legs' market data into the database.
func NewPairDataSource(path string, pair types.PairInfo, logger *logger.Logger) (PairDataSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	// Set DuckDB-specific optimizations
	_, err = db.Exec(`
		SET memory_limit='8GB';
		SET threads=4;
		SET temp_directory='./temp';
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to set DuckDB optimizations: %w", err)
	}

	return &DuckDBPairDataSource{
		db:     db,
		pair:   pair,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// legViewQuery builds the cleaned per-leg view over a csv or parquet file.
// Cleaning mirrors the ingestion rules: low and high are recomputed over all
// available prices, open becomes the open/close midpoint (the close alone
// when open is missing), and rows without a close are dropped.
func legViewQuery(view string, path string) (string, error) {
	var source string

	switch {
	case strings.HasSuffix(path, ".parquet"):
		source = fmt.Sprintf(`
			SELECT time,
				TRY_CAST(open AS DOUBLE) AS open,
				TRY_CAST(high AS DOUBLE) AS high,
				TRY_CAST(low AS DOUBLE) AS low,
				TRY_CAST(close AS DOUBLE) AS close,
				TRY_CAST(volume AS DOUBLE) AS volume
			FROM read_parquet('%s')`, path)
	case strings.HasSuffix(path, ".csv"), strings.HasSuffix(path, ".csv.gz"):
		source = fmt.Sprintf(`
			SELECT "timestamp" AS time,
				TRY_CAST(open AS DOUBLE) AS open,
				TRY_CAST(high AS DOUBLE) AS high,
				TRY_CAST(low AS DOUBLE) AS low,
				TRY_CAST(close AS DOUBLE) AS close,
				TRY_CAST(volume AS DOUBLE) AS volume
			FROM read_csv_auto('%s', header=true)`, path)
	default:
		return "", errors.Newf(errors.ErrCodeBacktestDataPathError, "unsupported data file format: %s", path)
	}

	return fmt.Sprintf(`
		CREATE VIEW %s AS
		WITH raw AS (%s)
		SELECT
			time,
			(COALESCE(open, close) + close) / 2 AS open,
			GREATEST(COALESCE(open, close), COALESCE(high, close), COALESCE(low, close), close) AS high,
			LEAST(COALESCE(open, close), COALESCE(high, close), COALESCE(low, close), close) AS low,
			close,
			COALESCE(volume, 0) AS volume
		FROM raw
		WHERE close IS NOT NULL;
	`, view, source), nil
}

// Initialize implements PairDataSource.
func (d *DuckDBPairDataSource) Initialize(pathA string, pathB string) error {
	d.logger.Debug("Initializing DuckDB pair data source",
		zap.String("pair", d.pair.String()),
		zap.String("path_a", pathA),
		zap.String("path_b", pathB),
	)

	// First drop the views if they exist
	_, err := d.db.Exec(`
		DROP VIEW IF EXISTS pair_data;
		DROP VIEW IF EXISTS leg_a;
		DROP VIEW IF EXISTS leg_b;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop existing views: %w", err)
	}

	// Create cleaned per-leg views - using raw SQL as Squirrel doesn't support CREATE VIEW
	for _, leg := range []struct {
		view string
		path string
	}{
		{"leg_a", pathA},
		{"leg_b", pathB},
	} {
		query, err := legViewQuery(leg.view, leg.path)
		if err != nil {
			return err
		}

		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create view %s: %w", leg.view, err)
		}
	}

	// Aligned pair view: the intersection of the two legs' timestamps
	_, err = d.db.Exec(`
		CREATE VIEW pair_data AS
		SELECT
			a.time AS time,
			a.open AS open_a, a.high AS high_a, a.low AS low_a, a.close AS close_a, a.volume AS volume_a,
			b.open AS open_b, b.high AS high_b, b.low AS low_b, b.close AS close_b, b.volume AS volume_b
		FROM leg_a a
		INNER JOIN leg_b b ON a.time = b.time;
	`)
	if err != nil {
		return fmt.Errorf("failed to create pair_data view: %w", err)
	}

	return nil
}

// Count implements PairDataSource.
func (d *DuckDBPairDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	// Use raw SQL query for Count as it's simpler for this case
	var count int

	query := "SELECT COUNT(*) FROM pair_data"

	var params []interface{}

	paramCount := 0

	if start.IsSome() {
		paramCount++
		if paramCount == 1 {
			query += " WHERE"
		} else {
			query += " AND"
		}

		query += fmt.Sprintf(" time >= $%d", paramCount)

		params = append(params, start.Unwrap())
	}

	if end.IsSome() {
		paramCount++
		if paramCount == 1 {
			query += " WHERE"
		} else {
			query += " AND"
		}

		query += fmt.Sprintf(" time <= $%d", paramCount)

		params = append(params, end.Unwrap())
	}

	var rows *sql.Row
	if len(params) > 0 {
		rows = d.db.QueryRow(query, params...)
	} else {
		rows = d.db.QueryRow(query)
	}

	err := rows.Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// scanPairBar scans one pair_data row into a PairBar.
func (d *DuckDBPairDataSource) scanPairBar(scan func(dest ...interface{}) error) (types.PairBar, error) {
	var (
		timestamp                           time.Time
		openA, highA, lowA, closeA, volumeA float64
		openB, highB, lowB, closeB, volumeB float64
	)

	err := scan(
		&timestamp,
		&openA, &highA, &lowA, &closeA, &volumeA,
		&openB, &highB, &lowB, &closeB, &volumeB,
	)
	if err != nil {
		return types.PairBar{}, err
	}

	return types.PairBar{
		Time: timestamp,
		A: types.MarketData{
			Symbol: d.pair.SymbolA,
			Time:   timestamp,
			Open:   openA,
			High:   highA,
			Low:    lowA,
			Close:  closeA,
			Volume: volumeA,
		},
		B: types.MarketData{
			Symbol: d.pair.SymbolB,
			Time:   timestamp,
			Open:   openB,
			High:   highB,
			Low:    lowB,
			Close:  closeB,
			Volume: volumeB,
		},
	}, nil
}

// ReadAll implements PairDataSource with batch processing.
func (d *DuckDBPairDataSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.PairBar, error) bool) {
	const batchSize = 1000 // Adjust this value based on your memory constraints

	return func(yield func(types.PairBar, error) bool) {
		d.logger.Debug("Reading all pair data from DuckDB with batch processing")

		// Build the base query using raw SQL for better compatibility
		query := fmt.Sprintf("SELECT %s FROM pair_data", pairColumns)

		// Add time range conditions if provided
		var conditions []string

		var params []interface{}

		paramCount := 0

		if start.IsSome() {
			paramCount++
			conditions = append(conditions, fmt.Sprintf("time >= $%d", paramCount))
			params = append(params, start.Unwrap())
		}

		if end.IsSome() {
			paramCount++
			conditions = append(conditions, fmt.Sprintf("time <= $%d", paramCount))
			params = append(params, end.Unwrap())
		}

		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}

		query += " ORDER BY time ASC"

		// Use a prepared statement for better performance
		stmt, err := d.db.Prepare(query)
		if err != nil {
			yield(types.PairBar{}, err)

			return
		}
		defer stmt.Close()

		var rows *sql.Rows
		if len(params) > 0 {
			rows, err = stmt.Query(params...)
		} else {
			rows, err = stmt.Query()
		}

		if err != nil {
			yield(types.PairBar{}, err)

			return
		}

		defer rows.Close()

		// Process rows in batches
		batch := make([]types.PairBar, 0, batchSize)

		for rows.Next() {
			bar, err := d.scanPairBar(rows.Scan)
			if err != nil {
				yield(types.PairBar{}, err)

				return
			}

			batch = append(batch, bar)

			// Process batch when it reaches the batch size
			if len(batch) >= batchSize {
				for _, data := range batch {
					if !yield(data, nil) {
						return
					}
				}

				batch = batch[:0] // Reset slice while keeping capacity
			}
		}

		// Process remaining rows
		for _, data := range batch {
			if !yield(data, nil) {
				return
			}
		}
	}
}

// GetRange implements PairDataSource with optimized query.
func (d *DuckDBPairDataSource) GetRange(start time.Time, end time.Time, interval optional.Option[Interval]) ([]types.PairBar, error) {
	// Process interval parameter
	var intervalMinutes optional.Option[int] = optional.None[int]()

	if interval.IsSome() {
		minutes, err := getIntervalMinutes(interval.Unwrap())
		if err != nil {
			return nil, err
		}

		intervalMinutes = optional.Some(minutes)
	}

	// Build the query
	query, args, err := d.buildGetRangeQuery(start, end, intervalMinutes)
	if err != nil {
		return nil, err
	}

	// Use prepared statement for better performance
	stmt, err := d.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair data: %w", err)
	}
	defer rows.Close()

	// Pre-allocate slice with reasonable capacity
	result := make([]types.PairBar, 0, 1000)

	for rows.Next() {
		bar, err := d.scanPairBar(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		result = append(result, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// ExecuteSQL implements PairDataSource.
func (d *DuckDBPairDataSource) ExecuteSQL(query string, params ...interface{}) ([]SQLResult, error) {
	d.logger.Debug("Executing SQL query", zap.String("query", query))

	// Use prepared statement for better performance
	stmt, err := d.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.Query(params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	// Get column names
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	// Pre-allocate slice with reasonable capacity
	result := make([]SQLResult, 0, 1000)

	for rows.Next() {
		// Create a slice of interface{} to hold the values
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))

		for i := range values {
			valuePtrs[i] = &values[i]
		}

		// Scan the row into the values slice
		err := rows.Scan(valuePtrs...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		// Create a map to store the column-value pairs
		rowMap := make(map[string]interface{})
		for i, col := range columns {
			rowMap[col] = values[i]
		}

		result = append(result, SQLResult{Values: rowMap})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// ReadLastData implements PairDataSource.
// Returns the most recent aligned bar of the pair.
func (d *DuckDBPairDataSource) ReadLastData() (types.PairBar, error) {
	d.logger.Debug("Reading last pair bar", zap.String("pair", d.pair.String()))

	// Using raw SQL for simplicity and reliability
	query := fmt.Sprintf(`
		SELECT %s
		FROM pair_data
		ORDER BY time DESC
		LIMIT 1
	`, pairColumns)

	bar, err := d.scanPairBar(d.db.QueryRow(query).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.PairBar{}, errors.Newf(errors.ErrCodeNoDataFound, "no aligned data found for pair: %s", d.pair.String())
		}

		return types.PairBar{}, fmt.Errorf("failed to scan row: %w", err)
	}

	return bar, nil
}

// GetPairData returns the aligned bar at an exact timestamp.
func (d *DuckDBPairDataSource) GetPairData(timestamp time.Time) (types.PairBar, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM pair_data
		WHERE time = $1
	`, pairColumns)

	bar, err := d.scanPairBar(d.db.QueryRow(query, timestamp).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.PairBar{}, errors.Newf(errors.ErrCodeNoDataFound, "no aligned data found for pair %s at time %v", d.pair.String(), timestamp)
		}

		return types.PairBar{}, fmt.Errorf("failed to get pair data: %w", err)
	}

	return bar, nil
}

// GetPreviousNumberOfDataPoints implements PairDataSource.
func (d *DuckDBPairDataSource) GetPreviousNumberOfDataPoints(end time.Time, count int) ([]types.PairBar, error) {
	d.logger.Debug("Getting previous pair bars",
		zap.Time("end", end),
		zap.Int("count", count))

	query := fmt.Sprintf(`
		SELECT %s
		FROM pair_data
		WHERE time <= $1
		ORDER BY time DESC
		LIMIT $2
	`, pairColumns)

	// Execute the query
	stmt, err := d.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.Query(end, count)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair data: %w", err)
	}
	defer rows.Close()

	// Pre-allocate slice with reasonable capacity
	result := make([]types.PairBar, 0, count)

	for rows.Next() {
		bar, err := d.scanPairBar(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		result = append(result, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// Reverse the slice to get chronological order (oldest to newest)
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	// Check if we got fewer data points than requested
	if len(result) < count {
		return result, errors.NewInsufficientDataErrorf(count, len(result), d.pair.String(), "insufficient aligned bars for pair %s: requested %d, got %d", d.pair.String(), count, len(result))
	}

	return result, nil
}

// Close implements PairDataSource.
func (d *DuckDBPairDataSource) Close() error {
	if d.db != nil {
		return d.db.Close()
	}

	return nil
}

// buildGetRangeQuery constructs the SQL query for GetRange method.
func (d *DuckDBPairDataSource) buildGetRangeQuery(start time.Time, end time.Time, intervalMinutes optional.Option[int]) (string, []interface{}, error) {
	// If no interval is specified, use a simple query with squirrel
	if !intervalMinutes.IsSome() {
		query, args, err := d.sq.
			Select(
				"time",
				"open_a", "high_a", "low_a", "close_a", "volume_a",
				"open_b", "high_b", "low_b", "close_b", "volume_b",
			).
			From("pair_data").
			Where(squirrel.And{
				squirrel.GtOrEq{"time": start},
				squirrel.LtOrEq{"time": end},
			}).
			OrderBy("time ASC").
			ToSql()
		if err != nil {
			return "", nil, fmt.Errorf("failed to build query: %w", err)
		}

		return query, args, nil
	}

	// For interval case, use raw SQL with window functions over both legs
	minutes := intervalMinutes.Unwrap()
	bucket := fmt.Sprintf("time_bucket(INTERVAL '%d minutes', time)", minutes)
	query := fmt.Sprintf(`
		WITH time_buckets AS MATERIALIZED (
			SELECT
				%[1]s as bucket_time,
				FIRST_VALUE(open_a) OVER (PARTITION BY %[1]s ORDER BY time) as open_a,
				MAX(high_a) OVER (PARTITION BY %[1]s) as high_a,
				MIN(low_a) OVER (PARTITION BY %[1]s) as low_a,
				LAST_VALUE(close_a) OVER (PARTITION BY %[1]s ORDER BY time ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) as close_a,
				SUM(volume_a) OVER (PARTITION BY %[1]s) as volume_a,
				FIRST_VALUE(open_b) OVER (PARTITION BY %[1]s ORDER BY time) as open_b,
				MAX(high_b) OVER (PARTITION BY %[1]s) as high_b,
				MIN(low_b) OVER (PARTITION BY %[1]s) as low_b,
				LAST_VALUE(close_b) OVER (PARTITION BY %[1]s ORDER BY time ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) as close_b,
				SUM(volume_b) OVER (PARTITION BY %[1]s) as volume_b
			FROM pair_data
			WHERE time >= $1 AND time <= $2
		)
		SELECT DISTINCT
			bucket_time as time,
			open_a, high_a, low_a, close_a, volume_a,
			open_b, high_b, low_b, close_b, volume_b
		FROM time_buckets
		ORDER BY bucket_time ASC
	`, bucket)

	return query, []interface{}{start, end}, nil
}
