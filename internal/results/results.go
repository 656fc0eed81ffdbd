// Package results discovers finished backtest runs under a results folder
// and loads their artifacts back into memory.
package results

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Run is one finished backtest run found under the results folder.
type Run struct {
	Stats  types.TradeStats
	Folder string // absolute path of the run's artifact directory
}

// Scan walks the results folder and parses every stats.yaml it finds.
// Runs are ordered newest first with the run id as tiebreaker. A folder
// that does not exist yet simply has no runs.
func Scan(resultsFolder string, log *logger.Logger) ([]Run, error) {
	var runs []Run

	err := filepath.WalkDir(resultsFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || d.Name() != "stats.yaml" {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}

		var statsList []types.TradeStats
		if yamlErr := yaml.Unmarshal(data, &statsList); yamlErr != nil {
			log.Warn("Skipping unparsable stats file",
				zap.String("path", path),
				zap.Error(yamlErr),
			)

			return nil
		}

		for _, stats := range statsList {
			runs = append(runs, Run{Stats: stats, Folder: filepath.Dir(path)})
		}

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan results folder: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Stats.Timestamp.Equal(runs[j].Stats.Timestamp) {
			return runs[i].Stats.ID < runs[j].Stats.ID
		}

		return runs[i].Stats.Timestamp.After(runs[j].Stats.Timestamp)
	})

	return runs, nil
}

// Find locates one run by its id.
func Find(resultsFolder string, id string, log *logger.Logger) (Run, bool, error) {
	runs, err := Scan(resultsFolder, log)
	if err != nil {
		return Run{}, false, err
	}

	for _, run := range runs {
		if run.Stats.ID == id {
			return run, true, nil
		}
	}

	return Run{}, false, nil
}

// ReportPath returns the path of the run's html report. The file may not
// exist when report generation was skipped.
func (r Run) ReportPath() string {
	return filepath.Join(r.Folder, "report.html")
}

// ReadTrades loads the run's trade log back out of its parquet artifact.
func (r Run) ReadTrades() ([]types.Trade, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	path := filepath.Join(r.Folder, "trades.parquet")
	query := fmt.Sprintf(`
		SELECT order_id, pair, symbol, side, position_type, quantity, price,
			timestamp, is_completed, status, reason, message, z_score,
			executed_at, executed_qty, executed_price, commission, pnl
		FROM read_parquet('%s')
		ORDER BY executed_at ASC, symbol ASC
	`, strings.ReplaceAll(path, "'", "''"))

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades parquet: %w", err)
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

// ReadEquity loads the run's equity curve from its csv artifact.
func (r Run) ReadEquity() ([]types.EquityPoint, error) {
	path := filepath.Join(r.Folder, "equity.csv")

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open equity file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read equity file: %w", err)
	}

	points := make([]types.EquityPoint, 0, len(records))

	for i, record := range records {
		// skip the header row
		if i == 0 {
			continue
		}

		if len(record) < 2 {
			continue
		}

		t, err := parseEquityTime(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid equity timestamp %q: %w", record[0], err)
		}

		equity, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid equity value %q: %w", record[1], err)
		}

		points = append(points, types.EquityPoint{Time: t, Equity: equity})
	}

	return points, nil
}

// parseEquityTime parses the timestamp formats the csv export produces.
func parseEquityTime(value string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999",
		time.RFC3339Nano,
		time.RFC3339,
	}

	var lastErr error

	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, lastErr
}
