package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/reporting"
	"github.com/rxtech-lab/pairtrade/internal/results"
	"github.com/rxtech-lab/pairtrade/internal/types"
)

// Application states.
const (
	StateRunSelect = iota
	StateStatsView
	StateTradesView
)

// Model is the main Bubble Tea model for the results browser.
type Model struct {
	state         int
	resultsFolder string
	log           *logger.Logger
	runList       list.Model
	tradesTable   table.Model
	spinner       spinner.Model
	selected      results.Run
	hasSelection  bool
	trades        []types.Trade
	loading       bool
	err           error
	width         int
	height        int
}

// NewModel creates a new Model browsing the given results folder.
func NewModel(resultsFolder string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		state:         StateRunSelect,
		resultsFolder: resultsFolder,
		log:           logger.NewNopLogger(),
		runList:       NewRunList(),
		tradesTable:   NewTradesTable(),
		spinner:       sp,
		loading:       true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadRunsCmd(m.resultsFolder, m.log))
}

// loadRunsCmd scans the results folder in the background.
func loadRunsCmd(resultsFolder string, log *logger.Logger) tea.Cmd {
	return func() tea.Msg {
		runs, err := results.Scan(resultsFolder, log)
		if err != nil {
			return LoadErrorMsg{Err: err}
		}

		return RunsLoadedMsg{Runs: runs}
	}
}

// loadTradesCmd reads the run's trade log in the background.
func loadTradesCmd(run results.Run) tea.Cmd {
	return func() tea.Msg {
		trades, err := run.ReadTrades()
		if err != nil {
			return LoadErrorMsg{Err: err}
		}

		return TradesLoadedMsg{Trades: trades}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			return m.handleEsc()
		case "r":
			if m.state == StateRunSelect {
				m.loading = true
				m.err = nil
				return m, tea.Batch(m.spinner.Tick, loadRunsCmd(m.resultsFolder, m.log))
			}
		case "t":
			if m.state == StateStatsView && m.hasSelection && !m.loading {
				m.loading = true
				m.err = nil
				return m, tea.Batch(m.spinner.Tick, loadTradesCmd(m.selected))
			}
		case "enter":
			if m.state == StateRunSelect && !m.loading {
				if item, ok := m.runList.SelectedItem().(runItem); ok {
					m.selected = item.run
					m.hasSelection = true
					m.state = StateStatsView
					return m, nil
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runList.SetSize(msg.Width, msg.Height-4)
		m.tradesTable.SetWidth(msg.Width)
		m.tradesTable.SetHeight(msg.Height - 6)
		return m, nil

	case RunsLoadedMsg:
		m.loading = false
		m.runList = UpdateRunListItems(m.runList, msg.Runs)
		return m, nil

	case TradesLoadedMsg:
		m.loading = false
		m.trades = msg.Trades
		m.tradesTable = UpdateTradesTableRows(m.tradesTable, msg.Trades)
		m.state = StateTradesView
		return m, nil

	case LoadErrorMsg:
		m.loading = false
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	// Delegate to state-specific update
	switch m.state {
	case StateRunSelect:
		return m.updateRunSelect(msg)
	case StateTradesView:
		return m.updateTradesView(msg)
	}

	return m, nil
}

func (m Model) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateStatsView:
		m.state = StateRunSelect
	case StateTradesView:
		m.state = StateStatsView
	}
	return m, nil
}

func (m Model) updateRunSelect(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.runList, cmd = m.runList.Update(msg)
	return m, cmd
}

func (m Model) updateTradesView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.tradesTable, cmd = m.tradesTable.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	switch m.state {
	case StateRunSelect:
		s.WriteString(TitleStyle.Render("Pair Trading - Backtest Results"))
		s.WriteString("\n\n")

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		switch {
		case m.loading:
			s.WriteString(m.spinner.View())
			s.WriteString(" Scanning results folder...\n")
		case len(m.runList.Items()) == 0:
			s.WriteString(fmt.Sprintf("No runs found under %s\n", m.resultsFolder))
		default:
			s.WriteString(m.runList.View())
			s.WriteString("\n")
		}

		s.WriteString(HelpStyle.Render("Enter: details | r: reload | q: quit"))

	case StateStatsView:
		s.WriteString(reporting.RenderSummary(m.selected.Stats))
		s.WriteString("\n")
		s.WriteString(HelpStyle.Render(fmt.Sprintf("Artifacts: %s", m.selected.Folder)))
		s.WriteString("\n\n")

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		if m.loading {
			s.WriteString(m.spinner.View())
			s.WriteString(" Loading trades...\n\n")
		}

		s.WriteString(HelpStyle.Render("t: trades | Esc: back | q: quit"))

	case StateTradesView:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Trades - %s", m.selected.Stats.Pair.String())))
		s.WriteString("\n\n")

		if len(m.trades) == 0 {
			s.WriteString("No trades recorded for this run.\n")
		} else {
			s.WriteString(m.tradesTable.View())
			s.WriteString("\n")
		}

		s.WriteString(HelpStyle.Render("Esc: back | q: quit"))
	}

	return s.String()
}
