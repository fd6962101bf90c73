package staircase

import (
	"fmt"
	"log"
)

// #region event-kind
// EventKind enumerates the observable steps of a staircase run.
type EventKind string

const (
	EventInitialized     EventKind = "initialized"
	EventResponse        EventKind = "response"
	EventTrialCounted    EventKind = "trial_counted"
	EventLevelChange     EventKind = "level_change"
	EventReversal        EventKind = "reversal"
	EventCeilingExceeded EventKind = "ceiling_exceeded"
	EventFloorExceeded   EventKind = "floor_exceeded"
)

// #endregion event-kind

// #region event
// Event describes one state transition. Fields not relevant to Kind are zero.
type Event struct {
	Kind              EventKind `json:"kind"`
	Response          int       `json:"response"` // 1-based response number
	Correct           bool      `json:"correct,omitempty"`
	Level             float64   `json:"level"`
	From              Direction `json:"from,omitempty"`
	To                Direction `json:"to,omitempty"`
	CurRight          int       `json:"cur_right,omitempty"`
	CurWrong          int       `json:"cur_wrong,omitempty"`
	TrialCount        int       `json:"trial_count"`
	RevCount          int       `json:"rev_count"`
	CeilingIncrements int       `json:"ceiling_increments,omitempty"`
	Reset             bool      `json:"reset,omitempty"` // bound events: reset instead of clamp
	Threshold         float64   `json:"-"`
	ThresholdError    float64   `json:"-"`
}

// String renders the event as a human-readable log line.
func (e Event) String() string {
	switch e.Kind {
	case EventInitialized:
		return fmt.Sprintf("Staircase initialized at level %g.", e.Level)
	case EventResponse:
		if e.Correct {
			return fmt.Sprintf("Correct response, nRight = %d", e.CurRight)
		}
		return fmt.Sprintf("Incorrect response, nWrong = %d", e.CurWrong)
	case EventTrialCounted:
		return fmt.Sprintf("Reversal: %d, Trial: %d", e.RevCount, e.TrialCount)
	case EventLevelChange:
		if e.To == DirectionDown {
			return fmt.Sprintf("Change level: decrease to %g.", e.Level)
		}
		return fmt.Sprintf("Change level: increase to %g.", e.Level)
	case EventReversal:
		return fmt.Sprintf("Reversal, %s to %s, revCount = %d, revThresh = %.1f ± %.1f",
			e.From, e.To, e.RevCount, e.Threshold, e.ThresholdError)
	case EventCeilingExceeded:
		if e.Reset {
			return fmt.Sprintf("Max exceeded %d time(s), resetting to %g.", e.CeilingIncrements, e.Level)
		}
		return fmt.Sprintf("Max exceeded %d time(s), bound at %g.", e.CeilingIncrements, e.Level)
	case EventFloorExceeded:
		if e.Reset {
			return fmt.Sprintf("Min exceeded, resetting to %g.", e.Level)
		}
		return fmt.Sprintf("Min exceeded, bound at %g.", e.Level)
	}
	return string(e.Kind)
}

// #endregion event

// #region sink
// Sink receives events as the staircase emits them. Implementations must not
// call back into the emitting Staircase.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// logSink prints every event through a stdlib logger; attached when Verbose is set.
type logSink struct {
	logger *log.Logger
}

func (s logSink) Emit(e Event) {
	s.logger.Print(e.String())
}

// #endregion sink
