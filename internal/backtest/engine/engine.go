package engine

import (
	"context"

	"github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1/datasource"
)

// Lifecycle callback types for backtest phases
// All callbacks with error return can abort execution if they return an error

// OnBacktestStartCallback is called when the entire backtest begins.
type OnBacktestStartCallback func(totalRuns int) error

// OnBacktestEndCallback is called when the entire backtest completes (always called via defer).
type OnBacktestEndCallback func(err error)

// OnRunStartCallback is called when the simulation of a pair begins.
// runID is a unique identifier for this run, generated before processing starts.
type OnRunStartCallback func(runID string, pair string, totalDataPoints int) error

// OnRunEndCallback is called when the simulation of a pair ends.
type OnRunEndCallback func(runID string, pair string, resultFolderPath string)

// OnProcessDataCallback is called for each data point processed.
type OnProcessDataCallback func(current int, total int) error

// LifecycleCallbacks holds all lifecycle callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnBacktestStart *OnBacktestStartCallback
	OnBacktestEnd   *OnBacktestEndCallback
	OnRunStart      *OnRunStartCallback
	OnRunEnd        *OnRunEndCallback
	OnProcessData   *OnProcessDataCallback
}

type Engine interface {
	// Initialize the engine with the given yaml configuration content.
	Initialize(config string) error
	// SetDataPaths sets the market data files for the two legs of the pair.
	// Each leg accepts a single parquet or csv file.
	SetDataPaths(pathA string, pathB string) error
	// SetResultsFolder sets the output directory for saving backtest results.
	// Each run writes into <folder>/<symbol_a>_<symbol_b>, with an extra
	// <start>_<end> level when the config narrows the time range.
	SetResultsFolder(folder string) error
	// SetDataSource sets the data source for the engine.
	SetDataSource(dataSource datasource.PairDataSource) error
	// Run checks the pair for cointegration and, if the gate passes, replays
	// the aligned bar stream through the spread model and the signal
	// generator. The context can be used to cancel the backtest operation.
	// Use LifecycleCallbacks to receive notifications at different phases of
	// the backtest.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
}
