package reporting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReportData() ReportData {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	equity := []types.EquityPoint{
		{Time: base, Equity: 100000},
		{Time: base.Add(24 * time.Hour), Equity: 100500},
		{Time: base.Add(48 * time.Hour), Equity: 100250},
	}

	zSeries := []ZPoint{
		{Time: base, Z: optional.None[float64]()},
		{Time: base.Add(24 * time.Hour), Z: optional.Some(-2.3)},
		{Time: base.Add(48 * time.Hour), Z: optional.Some(-0.1)},
	}

	entrySignal := types.Signal{
		Time:      base.Add(24 * time.Hour),
		FromState: types.PositionStateFlat,
		ToState:   types.PositionStateLongSpread,
		ZScore:    -2.3,
		Kind:      types.SignalKindEntryLong,
	}

	return ReportData{
		Stats: types.TradeStats{
			Pair: types.PairInfo{SymbolA: "AAPL", SymbolB: "GOOGL"},
			Performance: types.PerformanceReport{
				TotalReturn:      0.0025,
				AnnualizedSharpe: 1.2,
				MaxDrawdown:      0.0025,
				NumTrades:        1,
			},
		},
		Equity:         equity,
		ZSeries:        zSeries,
		Marks:          []types.Mark{types.MarkForSignal(entrySignal, "z=-2.3000")},
		EntryThreshold: 2.0,
		ExitThreshold:  0.5,
		StopThreshold:  optional.Some(4.0),
	}
}

func TestWriteReport(t *testing.T) {
	folder := t.TempDir()

	err := WriteReport(folder, testReportData())
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(folder, "report.html"))
	require.NoError(t, err)

	html := string(content)
	assert.Contains(t, html, "Equity AAPL/GOOGL")
	assert.Contains(t, html, "Spread z-score")
	assert.Contains(t, html, "Long spread entry")
}

func TestWriteReportEmptyRun(t *testing.T) {
	folder := t.TempDir()

	data := ReportData{
		Stats:          types.TradeStats{Pair: types.PairInfo{SymbolA: "A", SymbolB: "B"}},
		EntryThreshold: 2.0,
		ExitThreshold:  0.5,
		StopThreshold:  optional.None[float64](),
	}

	err := WriteReport(folder, data)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(folder, "report.html"))
	require.NoError(t, err)
}

func TestBuildThresholdLines(t *testing.T) {
	data := testReportData()

	lines := buildThresholdLines(data)
	assert.Len(t, lines, 6)

	data.StopThreshold = optional.None[float64]()
	lines = buildThresholdLines(data)
	assert.Len(t, lines, 4)
}

func TestBuildSignalPoints(t *testing.T) {
	data := testReportData()

	points := buildSignalPoints(data.Marks)
	require.Len(t, points, 1)
	assert.Equal(t, "Long spread entry", points[0].Name)
	assert.Equal(t, "triangle", points[0].Symbol)
	assert.Equal(t, "2023-01-02 00:00", points[0].Coordinate[0])
}

func TestRenderSummary(t *testing.T) {
	stats := types.TradeStats{
		Pair: types.PairInfo{SymbolA: "AAPL", SymbolB: "GOOGL"},
		Cointegration: types.CointegrationResult{
			Statistic: -3.5,
			PValue:    0.01,
		},
		HedgeRatio: types.HedgeRatio{Beta: 1.25, Alpha: 0.5},
		Performance: types.PerformanceReport{
			TotalReturn:      0.05,
			AnnualizedSharpe: 1.8,
			MaxDrawdown:      0.02,
		},
		TradeResult: types.TradeResult{
			NumberOfTrades:        4,
			NumberOfWinningTrades: 3,
			NumberOfLosingTrades:  1,
			WinRate:               0.75,
		},
		TradePnl: types.TradePnl{
			RealizedPnL: 5000,
			TotalPnL:    5000,
		},
		TotalFees:        12.5,
		TradeHoldingTime: types.TradeHoldingTime{Avg: 86400},
	}

	summary := RenderSummary(stats)
	assert.Contains(t, summary, "AAPL/GOOGL")
	assert.Contains(t, summary, "5.00%")
	assert.Contains(t, summary, "win rate 75.0%")
	assert.Contains(t, summary, "24h0m0s")
}
