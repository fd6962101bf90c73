package eval

import (
	"strings"
	"testing"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

func makeState(level float64) staircase.State {
	return staircase.State{
		CurLevel: level,
		NTrials:  make([]int, 5),
		NCorrect: make([]int, 5),
	}
}

func TestEvalPassesOnRealTransitions(t *testing.T) {
	cfg := staircase.DefaultConfig()
	sc, err := staircase.New(cfg)
	if err != nil {
		t.Fatalf("staircase.New: %v", err)
	}
	h := NewChecker(ConfigFor(cfg))

	for i, r := range []bool{true, true, false, false, true, true, true, true, false, false, false, false} {
		prev := sc.Snapshot()
		if err := sc.RecordResponse(r); err != nil {
			t.Fatalf("RecordResponse: %v", err)
		}
		result := h.Run(prev, sc.Snapshot())
		if !result.Passed {
			t.Fatalf("response %d: %s", i+1, result.Reason)
		}
		if len(result.Metrics) == 0 {
			t.Fatal("expected metrics")
		}
	}
}

func TestEvalFailsOnOutOfBoundsLevel(t *testing.T) {
	h := NewChecker(EvalConfig{Bounded: true, MinLevel: 1, MaxLevel: 5})
	prev := makeState(5)
	next := makeState(6)
	next.Responses = 1
	next.NTrials[4] = 1

	result := h.Run(prev, next)
	if result.Passed {
		t.Fatal("expected fail on level above max")
	}
	if !strings.Contains(result.Reason, "outside") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalIgnoresBoundsWhenResetting(t *testing.T) {
	h := NewChecker(EvalConfig{Bounded: false, MinLevel: 1, MaxLevel: 5})
	prev := makeState(5)
	next := makeState(5.5)
	next.Responses = 1
	next.NTrials[4] = 1

	if result := h.Run(prev, next); !result.Passed {
		t.Fatalf("unexpected fail: %s", result.Reason)
	}
}

func TestEvalFailsOnDoubleReversal(t *testing.T) {
	h := NewChecker(EvalConfig{})
	prev := makeState(3)
	next := makeState(3)
	next.Responses = 1
	next.NTrials[2] = 1
	next.RevCount = 2
	next.Reversals = []float64{3, 2}
	next.ReversalDirections = []staircase.Direction{staircase.DirectionUp, staircase.DirectionDown}

	result := h.Run(prev, next)
	if result.Passed {
		t.Fatal("expected fail when reversal count jumps by 2")
	}
}

func TestEvalFailsOnPreReversalTrialCount(t *testing.T) {
	h := NewChecker(EvalConfig{})
	prev := makeState(3)
	next := makeState(3)
	next.Responses = 1
	next.NTrials[2] = 1
	next.TrialCount = 1

	result := h.Run(prev, next)
	if result.Passed {
		t.Fatal("expected fail when a pre-reversal response is counted")
	}
}

func TestEvalFailsWhenCountersNotReset(t *testing.T) {
	h := NewChecker(EvalConfig{})
	prev := makeState(3)
	next := makeState(2)
	next.Responses = 1
	next.NTrials[2] = 1
	next.CurRight = 2

	result := h.Run(prev, next)
	if result.Passed {
		t.Fatal("expected fail when counters survive a level change")
	}
}

func TestEvalMultipleFailuresReason(t *testing.T) {
	h := NewChecker(EvalConfig{})
	result := h.Run(makeState(3), makeState(3))
	if result.Passed {
		t.Fatal("expected fail when no response was recorded")
	}
	if !strings.Contains(result.Reason, "2 checks") {
		t.Fatalf("expected two failing checks, got %q", result.Reason)
	}
}

func TestConfigFor(t *testing.T) {
	cfg := staircase.DefaultConfig()
	cfg.Levels = []float64{4, -2, 7}
	got := ConfigFor(cfg)
	if !got.Bounded || got.MinLevel != -2 || got.MaxLevel != 7 {
		t.Fatalf("unexpected config %+v", got)
	}
	cfg.CeilingBehaviour = staircase.Resetting
	if ConfigFor(cfg).Bounded {
		t.Fatal("resetting staircases should not be bounds-checked")
	}
}
