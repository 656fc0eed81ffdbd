// Package strategy implements the position state machine that turns
// standardized spread deviations into discrete position transitions.
//
// The machine has three states: FLAT, LONG_SPREAD and SHORT_SPREAD. Rules
// are evaluated in a fixed priority order per bar (stop, then exit, then
// entry) and the first match wins, so precedence between overlapping
// conditions is never ambiguous.
package strategy

import (
	"math"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/pairtrade/internal/spread"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// Thresholds configures the state machine. Entry and Exit are absolute
// z-score levels; Stop is optional and disables stop-outs when none.
type Thresholds struct {
	Entry float64
	Exit  float64
	Stop  optional.Option[float64]
}

// Validate checks the threshold geometry. Exit must sit strictly inside the
// entry band and the stop, when set, strictly outside it, otherwise the
// machine could enter and leave on the same bar.
func (t Thresholds) Validate() error {
	if t.Entry <= 0 {
		return errors.Newf(errors.ErrCodeInvalidThreshold,
			"entry threshold must be positive, got %f", t.Entry)
	}
	if t.Exit < 0 {
		return errors.Newf(errors.ErrCodeInvalidThreshold,
			"exit threshold must not be negative, got %f", t.Exit)
	}
	if t.Exit >= t.Entry {
		return errors.Newf(errors.ErrCodeInvalidThreshold,
			"exit threshold %f must be below entry threshold %f", t.Exit, t.Entry)
	}
	if t.Stop.IsSome() && t.Stop.Unwrap() <= t.Entry {
		return errors.Newf(errors.ErrCodeInvalidThreshold,
			"stop threshold %f must be above entry threshold %f", t.Stop.Unwrap(), t.Entry)
	}

	return nil
}

// NextState is the pure transition function. An undefined z-score always
// leaves the state unchanged. When tradable is false new entries are
// blocked, but exits and stops still fire: risk-reducing transitions are
// never blocked.
func NextState(current types.PositionState, z spread.ZScore, tradable bool, thresholds Thresholds) types.PositionState {
	next, _ := transition(current, z, tradable, thresholds)
	return next
}

func transition(current types.PositionState, z spread.ZScore, tradable bool, thresholds Thresholds) (types.PositionState, types.SignalKind) {
	if !z.Defined {
		return current, ""
	}

	value := z.Value

	switch current {
	case types.PositionStateFlat:
		if !tradable {
			return current, ""
		}
		if value <= -thresholds.Entry {
			return types.PositionStateLongSpread, types.SignalKindEntryLong
		}
		if value >= thresholds.Entry {
			return types.PositionStateShortSpread, types.SignalKindEntryShort
		}

	case types.PositionStateLongSpread:
		if thresholds.Stop.IsSome() && math.Abs(value) >= thresholds.Stop.Unwrap() {
			return types.PositionStateFlat, types.SignalKindStopOut
		}
		if value >= -thresholds.Exit {
			return types.PositionStateFlat, types.SignalKindExit
		}

	case types.PositionStateShortSpread:
		if thresholds.Stop.IsSome() && math.Abs(value) >= thresholds.Stop.Unwrap() {
			return types.PositionStateFlat, types.SignalKindStopOut
		}
		if value <= thresholds.Exit {
			return types.PositionStateFlat, types.SignalKindExit
		}
	}

	return current, ""
}

// Generator walks bars through the state machine, tracking the current
// position state and emitting one Signal per bar on which the state
// changes.
type Generator struct {
	thresholds Thresholds
	state      types.PositionState
}

// NewGenerator creates a generator starting FLAT.
func NewGenerator(thresholds Thresholds) (*Generator, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	return &Generator{
		thresholds: thresholds,
		state:      types.PositionStateFlat,
	}, nil
}

// State returns the current position state.
func (g *Generator) State() types.PositionState {
	return g.state
}

// Step advances the machine by one bar and returns the emitted Signal, or
// none when the state is unchanged.
func (g *Generator) Step(barTime time.Time, z spread.ZScore, tradable bool) optional.Option[types.Signal] {
	next, kind := transition(g.state, z, tradable, g.thresholds)
	if next == g.state {
		return optional.None[types.Signal]()
	}

	signal := types.Signal{
		Time:      barTime,
		FromState: g.state,
		ToState:   next,
		ZScore:    z.Value,
		Kind:      kind,
	}
	g.state = next

	return optional.Some(signal)
}
