package results

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/stretchr/testify/suite"
)

type ResultsTestSuite struct {
	suite.Suite
	resultsFolder string
	log           *logger.Logger
}

func TestResultsSuite(t *testing.T) {
	suite.Run(t, new(ResultsTestSuite))
}

func (suite *ResultsTestSuite) SetupTest() {
	resultsFolder, err := os.MkdirTemp("", "pairtrade-results-test")
	suite.Require().NoError(err)
	suite.resultsFolder = resultsFolder

	log, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.log = log
}

func (suite *ResultsTestSuite) TearDownTest() {
	if suite.resultsFolder != "" {
		os.RemoveAll(suite.resultsFolder)
	}
}

// writeRunFixture writes a stats.yaml into the folder the way a finished run
// does and returns the stats it recorded.
func (suite *ResultsTestSuite) writeRunFixture(folder string, id string, pair types.PairInfo, timestamp time.Time) types.TradeStats {
	suite.Require().NoError(os.MkdirAll(folder, 0755))

	stats := types.TradeStats{
		ID:        id,
		Timestamp: timestamp,
		Pair:      pair,
		Performance: types.PerformanceReport{
			TotalReturn: 0.124,
			NumTrades:   14,
		},
	}

	err := types.WriteTradeStats(filepath.Join(folder, "stats.yaml"), []types.TradeStats{stats})
	suite.Require().NoError(err)

	return stats
}

// writeTradesParquet produces a trades.parquet with the same schema the
// backtest state exports.
func (suite *ResultsTestSuite) writeTradesParquet(path string) {
	db, err := sql.Open("duckdb", ":memory:")
	suite.Require().NoError(err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE trades (
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
	suite.Require().NoError(err)

	_, err = db.Exec(`INSERT INTO trades VALUES
		('order-1', 'GLD/GDX', 'GLD', 'BUY', 'LONG', 10, 185.2,
			TIMESTAMP '2024-03-01 10:00:00', TRUE, 'FILLED',
			'entry_long_spread', 'z-score crossed below entry threshold', -2.1,
			TIMESTAMP '2024-03-01 10:00:00', 10, 185.2, 1.85, 0),
		('order-2', 'GLD/GDX', 'GDX', 'BUY', 'SHORT', 55, 31.4,
			TIMESTAMP '2024-03-01 10:00:00', TRUE, 'FILLED',
			'entry_long_spread', 'z-score crossed below entry threshold', -2.1,
			TIMESTAMP '2024-03-01 10:00:00', 55, 31.4, 0.95, 0)
	`)
	suite.Require().NoError(err)

	_, err = db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, path))
	suite.Require().NoError(err)
}

func (suite *ResultsTestSuite) writeEquityCSV(path string, content string) {
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))
}

// Test Scanning

func (suite *ResultsTestSuite) TestScanMissingFolder() {
	runs, err := Scan(filepath.Join(suite.resultsFolder, "does-not-exist"), suite.log)
	suite.NoError(err)
	suite.Empty(runs)
}

func (suite *ResultsTestSuite) TestScanOrdersNewestFirst() {
	suite.writeRunFixture(filepath.Join(suite.resultsFolder, "SPY_QQQ"), "older-run",
		types.PairInfo{SymbolA: "SPY", SymbolB: "QQQ"},
		time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC))
	suite.writeRunFixture(filepath.Join(suite.resultsFolder, "GLD_GDX"), "newer-run",
		types.PairInfo{SymbolA: "GLD", SymbolB: "GDX"},
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	runs, err := Scan(suite.resultsFolder, suite.log)
	suite.Require().NoError(err)
	suite.Require().Len(runs, 2)

	suite.Equal("newer-run", runs[0].Stats.ID)
	suite.Equal("older-run", runs[1].Stats.ID)
	suite.Equal(filepath.Join(suite.resultsFolder, "GLD_GDX"), runs[0].Folder)
}

func (suite *ResultsTestSuite) TestScanTiebreaksOnID() {
	timestamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	suite.writeRunFixture(filepath.Join(suite.resultsFolder, "SPY_QQQ"), "bbb",
		types.PairInfo{SymbolA: "SPY", SymbolB: "QQQ"}, timestamp)
	suite.writeRunFixture(filepath.Join(suite.resultsFolder, "GLD_GDX"), "aaa",
		types.PairInfo{SymbolA: "GLD", SymbolB: "GDX"}, timestamp)

	runs, err := Scan(suite.resultsFolder, suite.log)
	suite.Require().NoError(err)
	suite.Require().Len(runs, 2)

	suite.Equal("aaa", runs[0].Stats.ID)
	suite.Equal("bbb", runs[1].Stats.ID)
}

func (suite *ResultsTestSuite) TestScanFindsNestedRuns() {
	// Runs narrowed to a time range write one folder level deeper
	nested := filepath.Join(suite.resultsFolder, "GLD_GDX", "2024-01-01_2024-06-30")
	suite.writeRunFixture(nested, "nested-run",
		types.PairInfo{SymbolA: "GLD", SymbolB: "GDX"},
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	runs, err := Scan(suite.resultsFolder, suite.log)
	suite.Require().NoError(err)
	suite.Require().Len(runs, 1)

	suite.Equal("nested-run", runs[0].Stats.ID)
	suite.Equal(nested, runs[0].Folder)
}

func (suite *ResultsTestSuite) TestScanSkipsUnparsableStats() {
	suite.writeRunFixture(filepath.Join(suite.resultsFolder, "GLD_GDX"), "good-run",
		types.PairInfo{SymbolA: "GLD", SymbolB: "GDX"},
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	badFolder := filepath.Join(suite.resultsFolder, "BAD_PAIR")
	suite.Require().NoError(os.MkdirAll(badFolder, 0755))
	suite.Require().NoError(os.WriteFile(filepath.Join(badFolder, "stats.yaml"), []byte("{not yaml"), 0644))

	runs, err := Scan(suite.resultsFolder, suite.log)
	suite.Require().NoError(err)
	suite.Require().Len(runs, 1)
	suite.Equal("good-run", runs[0].Stats.ID)
}

// Test Lookup

func (suite *ResultsTestSuite) TestFindByID() {
	stats := suite.writeRunFixture(filepath.Join(suite.resultsFolder, "GLD_GDX"), "run-1",
		types.PairInfo{SymbolA: "GLD", SymbolB: "GDX"},
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	run, found, err := Find(suite.resultsFolder, "run-1", suite.log)
	suite.Require().NoError(err)
	suite.Require().True(found)
	suite.Equal(stats.ID, run.Stats.ID)
	suite.Equal(stats.Pair, run.Stats.Pair)
}

func (suite *ResultsTestSuite) TestFindMissing() {
	_, found, err := Find(suite.resultsFolder, "no-such-run", suite.log)
	suite.Require().NoError(err)
	suite.False(found)
}

// Test Artifact Loading

func (suite *ResultsTestSuite) TestReadTrades() {
	runFolder := filepath.Join(suite.resultsFolder, "GLD_GDX")
	suite.Require().NoError(os.MkdirAll(runFolder, 0755))
	suite.writeTradesParquet(filepath.Join(runFolder, "trades.parquet"))

	run := Run{Folder: runFolder}

	trades, err := run.ReadTrades()
	suite.Require().NoError(err)
	suite.Require().Len(trades, 2)

	// Same fill time, so the symbol breaks the tie
	suite.Equal("GDX", trades[0].Order.Symbol)
	suite.Equal(types.PositionTypeShort, trades[0].Order.PositionType)
	suite.InDelta(0.95, trades[0].Fee, 1e-9)

	suite.Equal("GLD", trades[1].Order.Symbol)
	suite.Equal(types.PurchaseTypeBuy, trades[1].Order.Side)
	suite.Equal(types.OrderReasonEntryLongSpread, trades[1].Order.Reason.Reason)
	suite.InDelta(-2.1, trades[1].Order.ZScore, 1e-9)
	suite.InDelta(185.2, trades[1].ExecutedPrice, 1e-9)
}

func (suite *ResultsTestSuite) TestReadTradesMissingFile() {
	run := Run{Folder: suite.resultsFolder}

	_, err := run.ReadTrades()
	suite.Error(err)
}

func (suite *ResultsTestSuite) TestReadEquity() {
	runFolder := filepath.Join(suite.resultsFolder, "GLD_GDX")
	suite.Require().NoError(os.MkdirAll(runFolder, 0755))
	suite.writeEquityCSV(filepath.Join(runFolder, "equity.csv"),
		"time,equity\n"+
			"2024-03-01 00:00:00,100000.0\n"+
			"2024-03-01 01:00:00,100250.5\n"+
			"2024-03-01 02:00:00,99980.25\n")

	run := Run{Folder: runFolder}

	points, err := run.ReadEquity()
	suite.Require().NoError(err)
	suite.Require().Len(points, 3)

	suite.InDelta(100000.0, points[0].Equity, 1e-9)
	suite.InDelta(99980.25, points[2].Equity, 1e-9)
	suite.True(points[0].Time.Before(points[1].Time))
}

func (suite *ResultsTestSuite) TestReadEquityBadTimestamp() {
	runFolder := filepath.Join(suite.resultsFolder, "GLD_GDX")
	suite.Require().NoError(os.MkdirAll(runFolder, 0755))
	suite.writeEquityCSV(filepath.Join(runFolder, "equity.csv"),
		"time,equity\nnot-a-time,100000.0\n")

	run := Run{Folder: runFolder}

	_, err := run.ReadEquity()
	suite.Error(err)
}

func (suite *ResultsTestSuite) TestReportPath() {
	run := Run{Folder: filepath.Join(suite.resultsFolder, "GLD_GDX")}
	suite.Equal(filepath.Join(suite.resultsFolder, "GLD_GDX", "report.html"), run.ReportPath())
}

// Test Equity CSV Parsing

func (suite *ResultsTestSuite) TestParseEquityTimeFormats() {
	t1, err := parseEquityTime("2024-03-01 10:30:00")
	suite.NoError(err)
	suite.Equal(2024, t1.Year())

	t2, err := parseEquityTime("2024-03-01 10:30:00.123456")
	suite.NoError(err)
	suite.Equal(123456000, t2.Nanosecond())

	t3, err := parseEquityTime("2024-03-01T10:30:00Z")
	suite.NoError(err)
	suite.Equal(10, t3.Hour())

	_, err = parseEquityTime("not-a-time")
	suite.Error(err)
}
