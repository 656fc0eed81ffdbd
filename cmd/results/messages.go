package main

import (
	"github.com/rxtech-lab/pairtrade/internal/results"
	"github.com/rxtech-lab/pairtrade/internal/types"
)

// RunsLoadedMsg carries the runs discovered under the results folder.
type RunsLoadedMsg struct {
	Runs []results.Run
}

// TradesLoadedMsg carries the trade log of the selected run.
type TradesLoadedMsg struct {
	Trades []types.Trade
}

// LoadErrorMsg indicates a run artifact could not be read.
type LoadErrorMsg struct {
	Err error
}
