package types

import "time"

// PositionState is the spread position held at a point in time. Exactly one
// state holds at any timestamp; state changes happen only through
// transitions emitted by the signal generator.
type PositionState string

const (
	// PositionStateFlat holds no position in either leg
	PositionStateFlat PositionState = "FLAT"
	// PositionStateLongSpread is long leg A, short leg B scaled by beta
	PositionStateLongSpread PositionState = "LONG_SPREAD"
	// PositionStateShortSpread is short leg A, long leg B scaled by beta
	PositionStateShortSpread PositionState = "SHORT_SPREAD"
)

// SignalKind classifies the transition a signal carries.
type SignalKind string

const (
	// SignalKindEntryLong opens a long-spread position from flat
	SignalKindEntryLong SignalKind = "entry_long_spread"
	// SignalKindEntryShort opens a short-spread position from flat
	SignalKindEntryShort SignalKind = "entry_short_spread"
	// SignalKindExit closes a position because the spread reverted inside the exit band
	SignalKindExit SignalKind = "exit"
	// SignalKindStopOut closes a position because the spread widened past the stop threshold
	SignalKindStopOut SignalKind = "stop_out"
)

// Signal is a position-state transition emitted for a single bar. One signal
// is emitted per bar where ToState differs from FromState; bars without a
// transition emit nothing.
type Signal struct {
	// Time is the timestamp of the bar that triggered the transition
	Time time.Time `json:"time" yaml:"time" csv:"time"`
	// FromState is the state held before this bar
	FromState PositionState `json:"from_state" yaml:"from_state" csv:"from_state"`
	// ToState is the state held after this bar
	ToState PositionState `json:"to_state" yaml:"to_state" csv:"to_state"`
	// ZScore is the standardized spread value that triggered the transition
	ZScore float64 `json:"z_score" yaml:"z_score" csv:"z_score"`
	// Kind classifies the transition (entry, exit, stop-out)
	Kind SignalKind `json:"kind" yaml:"kind" csv:"kind"`
}

// IsExit reports whether the signal reduces risk (any transition to flat).
func (s Signal) IsExit() bool {
	return s.ToState == PositionStateFlat && s.FromState != PositionStateFlat
}

// IsEntry reports whether the signal opens a position from flat.
func (s Signal) IsEntry() bool {
	return s.FromState == PositionStateFlat && s.ToState != PositionStateFlat
}
