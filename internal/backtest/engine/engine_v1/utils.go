package engine

import (
	"fmt"
	"path/filepath"
)

func getResultFolder(b *PairBacktestEngineV1) string {
	// Create base folder for the pair
	pairFolder := filepath.Join(b.resultsFolder, fmt.Sprintf("%s_%s", b.config.Pair.SymbolA, b.config.Pair.SymbolB))

	// Add a time range level when the config narrows the backtest period
	if b.config.StartTime.IsNone() && b.config.EndTime.IsNone() {
		return pairFolder
	}

	startTimeStr := "all"
	endTimeStr := "all"

	if b.config.StartTime.IsSome() {
		startTimeStr = b.config.StartTime.Unwrap().Format("20060102")
	}

	if b.config.EndTime.IsSome() {
		endTimeStr = b.config.EndTime.Unwrap().Format("20060102")
	}

	return filepath.Join(pairFolder, fmt.Sprintf("%s_%s", startTimeStr, endTimeStr))
}
