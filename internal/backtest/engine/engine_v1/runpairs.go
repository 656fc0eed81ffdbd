package engine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rxtech-lab/pairtrade/internal/backtest/engine"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
)

// PairRun is one pair's worth of work in a batch: its engine config plus the
// parquet paths of its two legs.
type PairRun struct {
	Config    string
	DataPathA string
	DataPathB string
}

// RunPairs backtests a batch of pairs concurrently, each on its own engine
// and in-memory data source. Every run writes under resultsFolder in its own
// pair subfolder, so two runs of the same pair in one batch would race on
// that folder; callers are expected to deduplicate.
//
// The backtest start/end callbacks fire once for the whole batch; the
// remaining callbacks fire per run and must be safe for concurrent use.
// The first run to fail cancels the rest.
func RunPairs(ctx context.Context, runs []PairRun, resultsFolder string, callbacks engine.LifecycleCallbacks) (err error) {
	defer func() {
		if callbacks.OnBacktestEnd != nil {
			(*callbacks.OnBacktestEnd)(err)
		}
	}()

	if len(runs) == 0 {
		err = errors.New(errors.ErrCodeBacktestNoPairs, "no pairs to run")

		return err
	}

	if callbacks.OnBacktestStart != nil {
		if cbErr := (*callbacks.OnBacktestStart)(len(runs)); cbErr != nil {
			err = errors.Wrap(errors.ErrCodeCallbackFailed, "backtest start callback failed", cbErr)

			return err
		}
	}

	// Batch-level callbacks stay with this function; engines only see the
	// per-run ones
	perRunCallbacks := callbacks
	perRunCallbacks.OnBacktestStart = nil
	perRunCallbacks.OnBacktestEnd = nil

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())

	for _, run := range runs {
		group.Go(func() error {
			return runOne(groupCtx, run, resultsFolder, perRunCallbacks)
		})
	}

	err = group.Wait()

	return err
}

// runOne wires a fresh engine and data source for a single pair and runs it.
func runOne(ctx context.Context, run PairRun, resultsFolder string, callbacks engine.LifecycleCallbacks) error {
	var config PairBacktestEngineV1Config
	if err := yaml.Unmarshal([]byte(run.Config), &config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	log, err := logger.NewLogger()
	if err != nil {
		return err
	}

	dataSource, err := datasource.NewPairDataSource(":memory:", config.Pair, log)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	defer dataSource.Close()

	eng := NewPairBacktestEngineV1()
	if err := eng.Initialize(run.Config); err != nil {
		return fmt.Errorf("failed to initialize engine for %s: %w", config.Pair.String(), err)
	}

	if err := eng.SetDataPaths(run.DataPathA, run.DataPathB); err != nil {
		return err
	}

	if err := eng.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	if err := eng.SetDataSource(dataSource); err != nil {
		return err
	}

	return eng.Run(ctx, callbacks)
}
