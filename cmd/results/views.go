package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/pairtrade/internal/results"
	"github.com/rxtech-lab/pairtrade/internal/types"
)

// runItem implements the list.Item interface for the run list.
type runItem struct {
	run results.Run
}

func (i runItem) Title() string { return i.run.Stats.Pair.String() }

func (i runItem) Description() string {
	return fmt.Sprintf("%s, %d trades, pnl %+.2f",
		i.run.Stats.Timestamp.Format("2006-01-02 15:04"),
		i.run.Stats.TradeResult.NumberOfTrades,
		i.run.Stats.TradePnl.TotalPnL)
}

func (i runItem) FilterValue() string { return i.run.Stats.Pair.String() }

// NewRunList creates the list for run selection.
func NewRunList() list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Backtest Runs"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

// UpdateRunListItems replaces the run list items with the given runs.
func UpdateRunListItems(l list.Model, runs []results.Run) list.Model {
	items := make([]list.Item, 0, len(runs))
	for _, run := range runs {
		items = append(items, runItem{run: run})
	}

	l.SetItems(items)

	return l
}

// NewTradesTable creates the table for displaying a run's trades.
func NewTradesTable() table.Model {
	columns := []table.Column{
		{Title: "Executed", Width: 16},
		{Title: "Symbol", Width: 8},
		{Title: "Side", Width: 6},
		{Title: "Position", Width: 8},
		{Title: "Quantity", Width: 12},
		{Title: "Price", Width: 12},
		{Title: "Fee", Width: 8},
		{Title: "PnL", Width: 10},
		{Title: "Reason", Width: 18},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// UpdateTradesTableRows updates the table with the run's trades.
func UpdateTradesTableRows(t table.Model, trades []types.Trade) table.Model {
	rows := make([]table.Row, 0, len(trades))

	for _, trade := range trades {
		rows = append(rows, table.Row{
			trade.ExecutedAt.Format("2006-01-02 15:04"),
			trade.Order.Symbol,
			string(trade.Order.Side),
			string(trade.Order.PositionType),
			fmt.Sprintf("%.4f", trade.ExecutedQty),
			fmt.Sprintf("%.4f", trade.ExecutedPrice),
			fmt.Sprintf("%.2f", trade.Fee),
			fmt.Sprintf("%+.2f", trade.PnL),
			trade.Order.Reason.Reason,
		})
	}

	t.SetRows(rows)

	return t
}
