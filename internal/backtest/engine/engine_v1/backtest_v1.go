package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/analytics"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/pairtrade/internal/coint"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/reporting"
	"github.com/rxtech-lab/pairtrade/internal/spread"
	"github.com/rxtech-lab/pairtrade/internal/strategy"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type PairBacktestEngineV1 struct {
	config        PairBacktestEngineV1Config
	dataPathA     string
	dataPathB     string
	resultsFolder string
	log           *logger.Logger
	marker        *BacktestMarker
	equityCurve   *BacktestEquityCurve
	executor      *pairExecutor
	state         *BacktestState
	datasource    datasource.PairDataSource
	lastRun       optional.Option[RunSummary]
}

// RunSummary captures the outcome of a finished run for in-process callers,
// so they can render results without re-reading the artifacts from disk.
type RunSummary struct {
	RunID        string
	Pair         types.PairInfo
	ResultFolder string
	Stats        types.TradeStats
	Equity       []types.EquityPoint
	RoundTrips   []types.RoundTrip
}

func NewPairBacktestEngineV1() engine.Engine {
	return &PairBacktestEngineV1{
		config:        EmptyConfig(),
		dataPathA:     "",
		dataPathB:     "",
		resultsFolder: "",
		log:           nil,
		marker:        nil,
		equityCurve:   nil,
		executor:      nil,
		state:         nil,
		datasource:    nil,
		lastRun:       optional.None[RunSummary](),
	}
}

// Initialize implements engine.Engine.
func (b *PairBacktestEngineV1) Initialize(config string) error {
	// parse the config
	err := yaml.Unmarshal([]byte(config), &b.config)
	if err != nil {
		return err
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	// initialize the logger
	var loggerError error

	b.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	b.log.Debug("Pair backtest engine initialized",
		zap.String("pair", b.config.Pair.String()),
	)

	// initialize the state
	b.state, err = NewBacktestState(b.log)
	if err != nil {
		return fmt.Errorf("failed to create backtest state: %w", err)
	}

	if err := b.state.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize state: %w", err)
	}

	// Use the configured broker for the commission fee and decimal precision
	// for quantity precision
	commissionFee := commission_fee.GetCommissionFeeHandler(b.config.Broker, b.config.TransactionCostRate)

	b.executor = newPairExecutor(
		b.state,
		b.config.Pair,
		b.config.InitialBalance,
		b.config.NotionalPerTrade,
		commissionFee,
		b.config.DecimalPrecision,
		b.log,
	)

	return nil
}

// SetDataPaths implements engine.Engine.
func (b *PairBacktestEngineV1) SetDataPaths(pathA string, pathB string) error {
	absA, err := filepath.Abs(pathA)
	if err != nil {
		b.log.Error("Failed to resolve data path",
			zap.String("path", pathA),
			zap.Error(err),
		)

		return err
	}

	absB, err := filepath.Abs(pathB)
	if err != nil {
		b.log.Error("Failed to resolve data path",
			zap.String("path", pathB),
			zap.Error(err),
		)

		return err
	}

	b.dataPathA = absA
	b.dataPathB = absB
	b.log.Debug("Data paths set",
		zap.String("leg_a", absA),
		zap.String("leg_b", absB),
	)

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *PairBacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder
	b.log.Debug("Results folder set",
		zap.String("folder", folder),
	)

	return nil
}

// SetDataSource implements engine.Engine.
func (b *PairBacktestEngineV1) SetDataSource(dataSource datasource.PairDataSource) error {
	b.datasource = dataSource

	return nil
}

// LastRun returns the summary of the most recently completed run.
func (b *PairBacktestEngineV1) LastRun() optional.Option[RunSummary] {
	return b.lastRun
}

// Run implements engine.Engine.
func (b *PairBacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (err error) {
	defer func() {
		if callbacks.OnBacktestEnd != nil {
			(*callbacks.OnBacktestEnd)(err)
		}
	}()

	if err = b.preRunCheck(); err != nil {
		return err
	}

	if callbacks.OnBacktestStart != nil {
		if cbErr := (*callbacks.OnBacktestStart)(1); cbErr != nil {
			err = errors.Wrap(errors.ErrCodeCallbackFailed, "backtest start callback failed", cbErr)

			return err
		}
	}

	// clean this run's result folder if a previous run left one behind
	resultFolderPath := getResultFolder(b)
	if _, statErr := os.Stat(resultFolderPath); statErr == nil {
		os.RemoveAll(resultFolderPath)
	}

	// create results folder
	os.MkdirAll(b.resultsFolder, 0755)

	err = b.runPair(ctx, resultFolderPath, callbacks)

	return err
}

// runPair executes the full lifecycle of one pair: load the aligned stream,
// gate on cointegration, simulate, write artifacts, clean up.
func (b *PairBacktestEngineV1) runPair(ctx context.Context, resultFolderPath string, callbacks engine.LifecycleCallbacks) error {
	runID := uuid.New().String()

	var err error

	b.marker, err = NewBacktestMarker(b.log)
	if err != nil {
		return fmt.Errorf("failed to create backtest marker: %w", err)
	}

	b.equityCurve, err = NewBacktestEquityCurve(b.log)
	if err != nil {
		return fmt.Errorf("failed to create equity curve: %w", err)
	}

	if err := b.state.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize state: %w", err)
	}

	b.log.Debug("Running pair backtest",
		zap.String("run_id", runID),
		zap.String("pair", b.config.Pair.String()),
		zap.String("data_a", b.dataPathA),
		zap.String("data_b", b.dataPathB),
		zap.String("result", resultFolderPath),
	)

	// Initialize the data source with the two legs
	if err := b.datasource.Initialize(b.dataPathA, b.dataPathB); err != nil {
		return fmt.Errorf("failed to initialize data source: %w", err)
	}

	// The spread model fits on full price series, so the aligned stream is
	// drained into memory before the simulation starts
	bars, err := b.collectBars()
	if err != nil {
		return err
	}

	if callbacks.OnRunStart != nil {
		if cbErr := (*callbacks.OnRunStart)(runID, b.config.Pair.String(), len(bars)); cbErr != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "run start callback failed", cbErr)
		}
	}

	result, err := b.simulate(ctx, bars, callbacks)
	if err != nil {
		return err
	}

	// Create result folder
	os.MkdirAll(resultFolderPath, 0755)

	stats, err := b.writeResults(runID, result, resultFolderPath)
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	equity, err := b.equityCurve.GetPoints()
	if err != nil {
		return fmt.Errorf("failed to read equity curve: %w", err)
	}

	b.lastRun = optional.Some(RunSummary{
		RunID:        runID,
		Pair:         b.config.Pair,
		ResultFolder: resultFolderPath,
		Stats:        stats,
		Equity:       equity,
		RoundTrips:   result.roundTrips,
	})

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(runID, b.config.Pair.String(), resultFolderPath)
	}

	// Cleanup state
	if err := b.cleanUpRun(); err != nil {
		return fmt.Errorf("failed to cleanup run: %w", err)
	}

	return nil
}

// collectBars drains the aligned bar stream for the configured time range.
func (b *PairBacktestEngineV1) collectBars() ([]types.PairBar, error) {
	var bars []types.PairBar

	for bar, err := range b.datasource.ReadAll(b.config.StartTime, b.config.EndTime) {
		if err != nil {
			return nil, fmt.Errorf("failed to read data: %w", err)
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

// runResult carries what a finished simulation hands to the result writer.
type runResult struct {
	cointegration types.CointegrationResult
	hedge         types.HedgeRatio
	roundTrips    []types.RoundTrip
	lastBar       types.PairBar
}

// pendingFill is a signal waiting for the next bar's open under next_open
// execution.
type pendingFill struct {
	signal types.Signal
	hedge  types.HedgeRatio
}

// simulate gates the pair on cointegration and replays the bar stream
// through the spread model, the signal generator, and the executor. Bars
// inside the estimation warm-up produce no equity points and no signals.
func (b *PairBacktestEngineV1) simulate(ctx context.Context, bars []types.PairBar, callbacks engine.LifecycleCallbacks) (runResult, error) {
	if len(bars) == 0 {
		return runResult{}, errors.Newf(errors.ErrCodeNoDataFound,
			"no aligned bars for pair %s in the configured range", b.config.Pair.String())
	}

	seriesA, seriesB, err := b.buildSeries(bars)
	if err != nil {
		return runResult{}, err
	}

	model := spread.NewModel(b.config.UseLogPrices)

	// The gate always judges the full history with a single fit, regardless
	// of the estimation window used for trading
	staticHedge, err := model.Fit(seriesA, seriesB)
	if err != nil {
		return runResult{}, err
	}

	staticSpread, err := model.Spread(seriesA, seriesB, staticHedge)
	if err != nil {
		return runResult{}, err
	}

	tester, err := coint.NewTester(b.config.SignificanceLevel, -1)
	if err != nil {
		return runResult{}, err
	}

	verdict, err := tester.Test(staticSpread.Values)
	if err != nil {
		return runResult{}, err
	}

	if err := tester.Require(verdict); err != nil {
		b.log.Warn("Cointegration gate rejected pair",
			zap.String("pair", b.config.Pair.String()),
			zap.Float64("p_value", verdict.PValue),
			zap.Float64("significance", b.config.SignificanceLevel),
		)

		return runResult{}, err
	}

	b.log.Info("Cointegration gate passed",
		zap.String("pair", b.config.Pair.String()),
		zap.Float64("p_value", verdict.PValue),
		zap.Float64("beta", staticHedge.Beta),
	)

	// Build the spread the simulation trades on
	spreadSeries := staticSpread
	warmup := 0
	zWindow := 0
	finalHedge := staticHedge

	var hedges []types.HedgeRatio

	if window, werr := b.config.EstimationWindow.Take(); werr == nil {
		spreadSeries, hedges, err = model.RollingSpread(seriesA, seriesB, window)
		if err != nil {
			return runResult{}, err
		}

		warmup = window - 1
		zWindow = window
		finalHedge = hedges[len(hedges)-1]
	}

	zscores := model.ZScores(spreadSeries, zWindow)

	generator, err := strategy.NewGenerator(strategy.Thresholds{
		Entry: b.config.EntryThreshold,
		Exit:  b.config.ExitThreshold,
		Stop:  b.config.StopThreshold,
	})
	if err != nil {
		return runResult{}, err
	}

	result := runResult{
		cointegration: verdict,
		hedge:         finalHedge,
		lastBar:       bars[len(bars)-1],
	}

	pending := optional.None[pendingFill]()
	total := len(bars) - warmup
	pairStr := b.config.Pair.String()

	for i := warmup; i < len(bars); i++ {
		select {
		case <-ctx.Done():
			return runResult{}, errors.Wrap(errors.ErrCodeBacktestAborted, "backtest cancelled", ctx.Err())
		default:
		}

		bar := bars[i]
		spreadIdx := i - warmup

		// Fill a signal deferred from the previous bar at this bar's open
		if fill, ferr := pending.Take(); ferr == nil {
			if err := b.executeSignal(fill.signal, bar.Time, bar.A.Open, bar.B.Open, fill.hedge, &result); err != nil {
				return runResult{}, err
			}

			pending = optional.None[pendingFill]()
		}

		hedge := staticHedge
		if hedges != nil {
			hedge = hedges[spreadIdx]
		}

		z := zscores[spreadIdx]

		signal := generator.Step(bar.Time, z, true)
		if s, serr := signal.Take(); serr == nil {
			if err := b.marker.Mark(bar, s, fmt.Sprintf("z=%.4f", s.ZScore)); err != nil {
				return runResult{}, fmt.Errorf("failed to mark signal: %w", err)
			}

			switch b.config.ExecutionLag {
			case ExecutionLagNextOpen:
				pending = optional.Some(pendingFill{signal: s, hedge: hedge})
			default:
				if err := b.executeSignal(s, bar.Time, bar.A.Close, bar.B.Close, hedge, &result); err != nil {
					return runResult{}, err
				}
			}
		}

		// Mark the equity at the close
		equityPoint := types.EquityPoint{Time: bar.Time, Equity: b.executor.Equity(bar.A.Close, bar.B.Close)}
		if err := b.equityCurve.Append(equityPoint); err != nil {
			return runResult{}, fmt.Errorf("failed to append equity point: %w", err)
		}

		// Journal the model internals
		zOpt := optional.None[float64]()
		if z.Defined {
			zOpt = optional.Some(z.Value)
		}

		row := CalcRow{
			Timestamp: bar.Time,
			Pair:      pairStr,
			PriceA:    bar.A.Close,
			PriceB:    bar.B.Close,
			Beta:      hedge.Beta,
			Alpha:     hedge.Alpha,
			Spread:    spreadSeries.Values[spreadIdx],
			ZScore:    zOpt,
			State:     generator.State(),
		}
		if err := b.state.LogCalculation(row); err != nil {
			return runResult{}, fmt.Errorf("failed to journal calculation: %w", err)
		}

		// Call callback if provided
		if callbacks.OnProcessData != nil {
			if cbErr := (*callbacks.OnProcessData)(spreadIdx+1, total); cbErr != nil {
				return runResult{}, errors.Wrap(errors.ErrCodeCallbackFailed, "process data callback failed", cbErr)
			}
		}
	}

	// A signal deferred past the last bar has no open to fill at
	if deferred, derr := pending.Take(); derr == nil {
		b.log.Debug("Discarding signal deferred past the end of data",
			zap.String("pair", pairStr),
			zap.Time("signal_time", deferred.signal.Time),
		)
	}

	// Force-close whatever is still open at the last close
	if b.executor.Position() != types.PositionStateFlat {
		last := bars[len(bars)-1]

		lastZ := 0.0
		if z := zscores[len(zscores)-1]; z.Defined {
			lastZ = z.Value
		}

		roundTrip, closed, err := b.executor.Close(last.Time, last.A.Close, last.B.Close, lastZ, types.OrderReasonEndOfData)
		if err != nil {
			return runResult{}, err
		}

		if closed {
			result.roundTrips = append(result.roundTrips, roundTrip)
		}
	}

	return result, nil
}

// executeSignal routes a position transition to the executor at the given
// fill prices. Entry fills that cannot be sized are skipped rather than
// failed; the state machine self-corrects on its next risk-reducing
// transition.
func (b *PairBacktestEngineV1) executeSignal(signal types.Signal, fillTime time.Time, priceA float64, priceB float64, hedge types.HedgeRatio, result *runResult) error {
	switch signal.Kind {
	case types.SignalKindEntryLong, types.SignalKindEntryShort:
		reason := types.OrderReasonEntryLongSpread
		if signal.Kind == types.SignalKindEntryShort {
			reason = types.OrderReasonEntryShortSpread
		}

		opened, err := b.executor.Open(fillTime, signal.ToState, priceA, priceB, hedge.Beta, signal.ZScore, reason)
		if err != nil {
			return err
		}

		if !opened {
			b.log.Warn("Entry signal not filled",
				zap.String("pair", b.config.Pair.String()),
				zap.Time("time", fillTime),
			)
		}

	case types.SignalKindExit, types.SignalKindStopOut:
		reason := types.OrderReasonExitSpread
		if signal.Kind == types.SignalKindStopOut {
			reason = types.OrderReasonStopOut
		}

		roundTrip, closed, err := b.executor.Close(fillTime, priceA, priceB, signal.ZScore, reason)
		if err != nil {
			return err
		}

		if closed {
			result.roundTrips = append(result.roundTrips, roundTrip)
		}
	}

	return nil
}

// buildSeries splits the aligned bars into the two close-price series the
// spread model fits on.
func (b *PairBacktestEngineV1) buildSeries(bars []types.PairBar) (*types.PriceSeries, *types.PriceSeries, error) {
	times := make([]time.Time, len(bars))
	closesA := make([]float64, len(bars))
	closesB := make([]float64, len(bars))

	for i, bar := range bars {
		times[i] = bar.Time
		closesA[i] = bar.A.Close
		closesB[i] = bar.B.Close
	}

	seriesA, err := types.NewPriceSeries(b.config.Pair.SymbolA, times, closesA)
	if err != nil {
		return nil, nil, err
	}

	seriesB, err := types.NewPriceSeries(b.config.Pair.SymbolB, times, closesB)
	if err != nil {
		return nil, nil, err
	}

	return seriesA, seriesB, nil
}

func (b *PairBacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

func (b *PairBacktestEngineV1) writeResults(runID string, result runResult, resultFolderPath string) (types.TradeStats, error) {
	if b.state == nil {
		return types.TradeStats{}, fmt.Errorf("backtest state is nil")
	}

	stats, err := b.state.GetStats(b.config.Pair, result.lastBar.A.Close, result.lastBar.B.Close)
	if err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to get stats: %w", err)
	}

	equity, err := b.equityCurve.GetPoints()
	if err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to read equity curve: %w", err)
	}

	performance, err := analytics.Evaluate(equity, result.roundTrips, b.config.BarsPerYear)
	if err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to evaluate performance: %w", err)
	}

	stats.ID = runID
	stats.Timestamp = time.Now().UTC()
	stats.Cointegration = result.cointegration
	stats.HedgeRatio = result.hedge
	stats.Performance = performance
	stats.TradeResult.MaxDrawdown = performance.MaxDrawdown
	stats.TradesFilePath = filepath.Join(resultFolderPath, "trades.parquet")
	stats.OrdersFilePath = filepath.Join(resultFolderPath, "orders.parquet")
	stats.CalcLogFilePath = filepath.Join(resultFolderPath, "calc_log.parquet")
	stats.EquityFilePath = filepath.Join(resultFolderPath, "equity.csv")
	stats.DataPathA = b.dataPathA
	stats.DataPathB = b.dataPathB

	// Write stats to file
	if err := types.WriteTradeStats(filepath.Join(resultFolderPath, "stats.yaml"), []types.TradeStats{stats}); err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to write stats: %w", err)
	}

	// Write the order, trade, and calc journals to disk
	if err := b.state.Write(resultFolderPath); err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to write state: %w", err)
	}

	// Write the equity curve to disk
	if err := b.equityCurve.Write(resultFolderPath); err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to write equity curve: %w", err)
	}

	// Write the signal marks to disk
	if err := b.marker.Write(resultFolderPath); err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to write marker: %w", err)
	}

	// Render the html report
	if err := b.writeReport(stats, equity, resultFolderPath); err != nil {
		return types.TradeStats{}, fmt.Errorf("failed to write report: %w", err)
	}

	return stats, nil
}

// writeReport renders the run's report.html from the journaled artifacts.
func (b *PairBacktestEngineV1) writeReport(stats types.TradeStats, equity []types.EquityPoint, resultFolderPath string) error {
	marks, err := b.marker.GetMarks()
	if err != nil {
		return fmt.Errorf("failed to read marks: %w", err)
	}

	calcLog, err := b.state.GetCalcLog()
	if err != nil {
		return fmt.Errorf("failed to read calc log: %w", err)
	}

	zSeries := make([]reporting.ZPoint, 0, len(calcLog))
	for _, row := range calcLog {
		zSeries = append(zSeries, reporting.ZPoint{Time: row.Timestamp, Z: row.ZScore})
	}

	report := reporting.ReportData{
		Stats:          stats,
		Equity:         equity,
		ZSeries:        zSeries,
		Marks:          marks,
		EntryThreshold: b.config.EntryThreshold,
		ExitThreshold:  b.config.ExitThreshold,
		StopThreshold:  b.config.StopThreshold,
	}

	return reporting.WriteReport(resultFolderPath, report)
}

func (b *PairBacktestEngineV1) cleanUpRun() error {
	if b.state == nil {
		return fmt.Errorf("backtest state is nil")
	}

	if err := b.state.Cleanup(); err != nil {
		return fmt.Errorf("failed to cleanup state: %w", err)
	}

	// clean up the executor
	if b.executor != nil {
		b.executor.Reset()
	}

	// Cleanup the marker
	if b.marker != nil {
		if err := b.marker.Cleanup(); err != nil {
			return fmt.Errorf("failed to cleanup marker: %w", err)
		}
	}

	// Cleanup the equity curve
	if b.equityCurve != nil {
		if err := b.equityCurve.Cleanup(); err != nil {
			return fmt.Errorf("failed to cleanup equity curve: %w", err)
		}
	}

	return nil
}

func (b *PairBacktestEngineV1) preRunCheck() error {
	if b.state == nil || b.executor == nil || b.log == nil {
		return errors.New(errors.ErrCodeBacktestInitFailed, "engine is not initialized")
	}

	if b.dataPathA == "" || b.dataPathB == "" {
		b.log.Error("No data paths loaded")

		return errors.New(errors.ErrCodeBacktestDataPathError, "both legs need a data path")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeBacktestNoResultsDir, "no results folder set")
	}

	if b.datasource == nil {
		b.log.Error("No datasource set")

		return errors.New(errors.ErrCodeBacktestNoDatasource, "no datasource set")
	}

	return nil
}
