package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min" json:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max" json:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg" json:"avg"`
}

type TradePnl struct {
	// Realized PnL, summed over all closed round-trips.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// Unrealized PnL of positions still open at the end of the run.
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	// Total PnL. By adding RealizedPnL and UnrealizedPnL.
	TotalPnL float64 `yaml:"total_pnl" json:"total_pnl"`
	// Maximum loss. Minimum realized pnl over all round-trips.
	MaximumLoss float64 `yaml:"maximum_loss" json:"maximum_loss"`
	// Maximum profit. Maximum realized pnl over all round-trips.
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

type TradeResult struct {
	// Count of all round-trips.
	NumberOfTrades int `yaml:"number_of_trades" json:"number_of_trades"`
	// Count of winning round-trips with positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	// Count of losing round-trips with negative pnl.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	// Win rate.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Maximum drawdown.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// PairInfo identifies the two legs of the traded pair.
type PairInfo struct {
	// SymbolA is the dependent leg of the regression (the leg the spread is long)
	SymbolA string `yaml:"symbol_a" json:"symbol_a"`
	// SymbolB is the regressor leg, sized by the hedge ratio
	SymbolB string `yaml:"symbol_b" json:"symbol_b"`
}

// String returns the canonical "A/B" representation of the pair.
func (p PairInfo) String() string {
	return p.SymbolA + "/" + p.SymbolB
}

type TradeStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Pair identifies the two legs of the run.
	Pair PairInfo `yaml:"pair" json:"pair"`
	// Cointegration is the gate verdict the run started from.
	Cointegration CointegrationResult `yaml:"cointegration" json:"cointegration"`
	// HedgeRatio is the fitted relationship used by the run. For rolling
	// fits this is the final window's fit.
	HedgeRatio HedgeRatio `yaml:"hedge_ratio" json:"hedge_ratio"`
	// Performance summarizes the equity curve and trade log.
	Performance PerformanceReport `yaml:"performance" json:"performance"`
	// Result of all trades.
	TradeResult TradeResult `yaml:"trade_result" json:"trade_result"`
	// Total fees.
	TotalFees float64 `yaml:"total_fees" json:"total_fees"`
	// Holding time of all trades.
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time" json:"trade_holding_time"`
	// PnL of all trades.
	TradePnl TradePnl `yaml:"trade_pnl" json:"trade_pnl"`
	// TradesFilePath is the path to the trades parquet file.
	TradesFilePath string `yaml:"trades_file_path" json:"trades_file_path"`
	// OrdersFilePath is the path to the orders parquet file.
	OrdersFilePath string `yaml:"orders_file_path" json:"orders_file_path"`
	// CalcLogFilePath is the path to the per-bar calculation log parquet file.
	CalcLogFilePath string `yaml:"calc_log_file_path" json:"calc_log_file_path"`
	// EquityFilePath is the path to the equity curve csv file.
	EquityFilePath string `yaml:"equity_file_path" json:"equity_file_path"`
	// DataPathA is the path to the market data file for leg A.
	DataPathA string `yaml:"data_path_a" json:"data_path_a"`
	// DataPathB is the path to the market data file for leg B.
	DataPathB string `yaml:"data_path_b" json:"data_path_b"`
}

func WriteTradeStats(path string, stats []TradeStats) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal trade stats to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write trade stats to file: %w", err)
	}

	return nil
}
