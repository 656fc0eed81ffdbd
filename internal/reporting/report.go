// Package reporting renders a backtest run's artifacts into a standalone
// html report and a terminal summary.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	chartypes "github.com/go-echarts/go-echarts/v2/types"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/types"
)

const (
	colorBackground    = "#0b1220"
	colorTextPrimary   = "#e5e7eb"
	colorTextSecondary = "#94a3b8"
	colorEquity        = "#3b82f6"
	colorZScore        = "#22d3ee"
	colorEntryBand     = "#f87171"
	colorExitBand      = "#34d399"
	colorStopBand      = "#fb923c"

	chartWidthPx  = 1400
	chartHeightPx = 480
)

// markColors maps annotation colors to the report palette.
var markColors = map[types.MarkColor]string{
	types.MarkColorRed:    "#f87171",
	types.MarkColorGreen:  "#34d399",
	types.MarkColorBlue:   "#3b82f6",
	types.MarkColorYellow: "#fbbf24",
	types.MarkColorPurple: "#a78bfa",
	types.MarkColorOrange: "#fb923c",
}

// markSymbols maps annotation shapes to echarts symbol names.
var markSymbols = map[types.MarkShape]string{
	types.MarkShapeCircle:   "circle",
	types.MarkShapeSquare:   "rect",
	types.MarkShapeTriangle: "triangle",
}

// ZPoint is one z-score observation of the report's signal chart. Z is absent
// on bars where the rolling standard deviation degenerated.
type ZPoint struct {
	Time time.Time
	Z    optional.Option[float64]
}

// ReportData bundles everything one run's report is rendered from.
type ReportData struct {
	Stats          types.TradeStats
	Equity         []types.EquityPoint
	ZSeries        []ZPoint
	Marks          []types.Mark
	EntryThreshold float64
	ExitThreshold  float64
	StopThreshold  optional.Option[float64]
}

// WriteReport renders report.html into folderPath: the equity curve on top,
// the z-score with its trading bands and signal annotations below.
func WriteReport(folderPath string, data ReportData) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		buildEquityChart(data),
		buildZScoreChart(data),
	)

	file, err := os.Create(filepath.Join(folderPath, "report.html"))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := page.Render(file); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	return nil
}

func buildEquityChart(data ReportData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           chartypes.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Equity %s", data.Stats.Pair.String()),
			Subtitle: fmt.Sprintf("return %.2f%% | sharpe %.2f | max drawdown %.2f%% | trades %d",
				data.Stats.Performance.TotalReturn*100,
				data.Stats.Performance.AnnualizedSharpe,
				data.Stats.Performance.MaxDrawdown*100,
				data.Stats.Performance.NumTrades,
			),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	xAxis := make([]string, len(data.Equity))
	points := make([]opts.LineData, len(data.Equity))

	for i, point := range data.Equity {
		xAxis[i] = formatAxisTime(point.Time)
		points[i] = opts.LineData{Value: point.Equity}
	}

	line.SetXAxis(xAxis)
	line.AddSeries("Equity", points, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))

	return line
}

func buildZScoreChart(data ReportData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           chartypes.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Spread z-score",
			Subtitle:      formatBandSubtitle(data),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	xAxis := make([]string, len(data.ZSeries))
	points := make([]opts.LineData, len(data.ZSeries))

	for i, point := range data.ZSeries {
		xAxis[i] = formatAxisTime(point.Time)

		if z, err := point.Z.Take(); err == nil {
			points[i] = opts.LineData{Value: z}
		} else {
			points[i] = opts.LineData{Value: nil}
		}
	}

	line.SetXAxis(xAxis)
	line.AddSeries("z", points,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorZScore, Width: 2}),
		charts.WithMarkLineNameYAxisItemOpts(buildThresholdLines(data)...),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			Symbol:    []string{"none", "none"},
			LineStyle: &opts.LineStyle{Type: "dashed", Opacity: opts.Float(0.6)},
		}),
		charts.WithMarkPointNameCoordItemOpts(buildSignalPoints(data.Marks)...),
	)

	return line
}

// buildThresholdLines draws the symmetric trading bands as horizontal lines.
func buildThresholdLines(data ReportData) []opts.MarkLineNameYAxisItem {
	items := []opts.MarkLineNameYAxisItem{
		{Name: "entry", YAxis: data.EntryThreshold},
		{Name: "entry", YAxis: -data.EntryThreshold},
		{Name: "exit", YAxis: data.ExitThreshold},
		{Name: "exit", YAxis: -data.ExitThreshold},
	}

	if stop, err := data.StopThreshold.Take(); err == nil {
		items = append(items,
			opts.MarkLineNameYAxisItem{Name: "stop", YAxis: stop},
			opts.MarkLineNameYAxisItem{Name: "stop", YAxis: -stop},
		)
	}

	return items
}

// buildSignalPoints pins each journaled signal onto the z-score chart at the
// bar it was emitted on.
func buildSignalPoints(marks []types.Mark) []opts.MarkPointNameCoordItem {
	items := make([]opts.MarkPointNameCoordItem, 0, len(marks))

	for _, mark := range marks {
		items = append(items, opts.MarkPointNameCoordItem{
			Name:       mark.Title,
			Coordinate: []interface{}{formatAxisTime(mark.Signal.Time), mark.Signal.ZScore},
			Value:      fmt.Sprintf("%.2f", mark.Signal.ZScore),
			Symbol:     markSymbols[mark.Shape],
			SymbolSize: 18,
			ItemStyle:  &opts.ItemStyle{Color: markColors[mark.Color]},
		})
	}

	return items
}

func formatBandSubtitle(data ReportData) string {
	subtitle := fmt.Sprintf("entry ±%.2f | exit ±%.2f", data.EntryThreshold, data.ExitThreshold)
	if stop, err := data.StopThreshold.Take(); err == nil {
		subtitle += fmt.Sprintf(" | stop ±%.2f", stop)
	}

	return subtitle
}

func formatAxisTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
