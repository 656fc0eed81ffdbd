package types

type MarkShape string

const (
	MarkShapeCircle   MarkShape = "circle"
	MarkShapeSquare   MarkShape = "square"
	MarkShapeTriangle MarkShape = "triangle"
)

type MarkColor string

const (
	MarkColorRed    MarkColor = "red"
	MarkColorGreen  MarkColor = "green"
	MarkColorBlue   MarkColor = "blue"
	MarkColorYellow MarkColor = "yellow"
	MarkColorPurple MarkColor = "purple"
	MarkColorOrange MarkColor = "orange"
)

// Mark is a chart annotation pinned to one signal of a run. The report
// renderer draws marks onto the z-score chart at the signal's timestamp.
type Mark struct {
	Signal   Signal
	Color    MarkColor
	Shape    MarkShape
	Title    string
	Message  string
	Category string
}

// MarkForSignal styles an annotation for a signal: entries are green or red
// triangles by direction, exits are blue circles, stop-outs are orange
// squares.
func MarkForSignal(signal Signal, message string) Mark {
	mark := Mark{
		Signal:  signal,
		Message: message,
	}

	switch signal.Kind {
	case SignalKindEntryLong:
		mark.Color = MarkColorGreen
		mark.Shape = MarkShapeTriangle
		mark.Title = "Long spread entry"
		mark.Category = "entry"
	case SignalKindEntryShort:
		mark.Color = MarkColorRed
		mark.Shape = MarkShapeTriangle
		mark.Title = "Short spread entry"
		mark.Category = "entry"
	case SignalKindExit:
		mark.Color = MarkColorBlue
		mark.Shape = MarkShapeCircle
		mark.Title = "Exit"
		mark.Category = "exit"
	case SignalKindStopOut:
		mark.Color = MarkColorOrange
		mark.Shape = MarkShapeSquare
		mark.Title = "Stop-out"
		mark.Category = "stop"
	}

	return mark
}
