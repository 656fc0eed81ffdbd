package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/pairtrade/internal/types"
)

// Style definitions.
var (
	// titleStyle for the summary header.
	titleStyle = lipgloss.NewStyle().Bold(true)

	// labelStyle for row labels.
	labelStyle = lipgloss.NewStyle().Faint(true)

	// profitStyle for non-negative pnl values.
	profitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// lossStyle for negative pnl values.
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// RenderSummary formats a run's stats as a terminal block.
func RenderSummary(stats types.TradeStats) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Backtest %s", stats.Pair.String())))
	b.WriteString("\n\n")

	writeRow(&b, "Cointegration", fmt.Sprintf("stat %.4f, p-value %.4f", stats.Cointegration.Statistic, stats.Cointegration.PValue))
	writeRow(&b, "Hedge ratio", fmt.Sprintf("beta %.4f, alpha %.4f", stats.HedgeRatio.Beta, stats.HedgeRatio.Alpha))
	writeRow(&b, "Total return", fmt.Sprintf("%.2f%%", stats.Performance.TotalReturn*100))
	writeRow(&b, "Annualized sharpe", fmt.Sprintf("%.2f", stats.Performance.AnnualizedSharpe))
	writeRow(&b, "Max drawdown", fmt.Sprintf("%.2f%%", stats.Performance.MaxDrawdown*100))
	writeRow(&b, "Trades", fmt.Sprintf("%d (%d won, %d lost, win rate %.1f%%)",
		stats.TradeResult.NumberOfTrades,
		stats.TradeResult.NumberOfWinningTrades,
		stats.TradeResult.NumberOfLosingTrades,
		stats.TradeResult.WinRate*100,
	))
	writeRow(&b, "Realized pnl", FormatPnl(stats.TradePnl.RealizedPnL))
	writeRow(&b, "Unrealized pnl", FormatPnl(stats.TradePnl.UnrealizedPnL))
	writeRow(&b, "Total pnl", FormatPnl(stats.TradePnl.TotalPnL))
	writeRow(&b, "Total fees", fmt.Sprintf("%.2f", stats.TotalFees))
	writeRow(&b, "Avg holding time", formatHolding(stats.TradeHoldingTime.Avg))

	return b.String()
}

func writeRow(b *strings.Builder, label string, value string) {
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-20s", label)))
	b.WriteString(value)
	b.WriteString("\n")
}

// FormatPnl colors a pnl value green or red by its sign.
func FormatPnl(pnl float64) string {
	value := fmt.Sprintf("%+.2f", pnl)

	if pnl < 0 {
		return lossStyle.Render(value)
	}

	return profitStyle.Render(value)
}

func formatHolding(seconds int) string {
	if seconds <= 0 {
		return "n/a"
	}

	return (time.Duration(seconds) * time.Second).String()
}
