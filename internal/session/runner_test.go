package session

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"path/filepath"
	"testing"

	"github.com/hashtagcpt/psychophysics-parrot/internal/logging"
	"github.com/hashtagcpt/psychophysics-parrot/internal/observer"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// script cycles through pattern forever.
func script(pattern ...bool) Responder {
	i := 0
	return ResponderFunc(func(ctx context.Context, level float64) (bool, error) {
		r := pattern[i%len(pattern)]
		i++
		return r, nil
	})
}

func TestRunPersistsSession(t *testing.T) {
	st := tempStore(t)
	r := NewRunner(WithStore(st), WithLogger(quietLogger()))

	res, err := r.Run(context.Background(), Track{
		Name:      "scripted",
		Config:    staircase.DefaultConfig(),
		Responder: script(true, true, false, false),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// c,c moves down without a reversal; every later pair reverses.
	if res.Responses != 22 {
		t.Fatalf("expected 22 responses, got %d", res.Responses)
	}
	if !res.Finished() || res.FinishReasons[0] != staircase.FinishMaxReversals {
		t.Fatalf("unexpected finish reasons %v", res.FinishReasons)
	}
	wantMean, wantErr := staircase.Estimate(res.Final.Reversals)
	if res.Threshold != wantMean || res.ThresholdError != wantErr {
		t.Fatalf("threshold %g ± %g, want %g ± %g", res.Threshold, res.ThresholdError, wantMean, wantErr)
	}

	rec, err := st.GetSession(res.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !rec.Finished() || rec.Track != "scripted" {
		t.Fatalf("unexpected session record %+v", rec)
	}
	if math.Abs(rec.Threshold-res.Threshold) > 1e-12 {
		t.Fatalf("stored threshold %g, want %g", rec.Threshold, res.Threshold)
	}

	trials, err := st.ListTrials(res.SessionID)
	if err != nil {
		t.Fatalf("ListTrials: %v", err)
	}
	if len(trials) != res.Responses {
		t.Fatalf("expected %d trials, got %d", res.Responses, len(trials))
	}
	reversals := 0
	for _, tr := range trials {
		if tr.Reversal {
			reversals++
		}
	}
	if reversals != 10 {
		t.Fatalf("expected 10 reversal trials, got %d", reversals)
	}

	tallies, err := st.GetTallies(res.SessionID)
	if err != nil {
		t.Fatalf("GetTallies: %v", err)
	}
	total := 0
	for _, tl := range tallies {
		total += tl.NTrials
	}
	if total != res.Responses {
		t.Fatalf("tallies sum to %d, want %d", total, res.Responses)
	}

	events, err := logging.ListEvents(st.DB(), res.SessionID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) == 0 || events[0].Kind != string(staircase.EventInitialized) {
		t.Fatalf("expected events starting with initialized, got %d events", len(events))
	}
}

func TestRunWithoutStore(t *testing.T) {
	r := NewRunner(WithLogger(quietLogger()))
	cfg := staircase.DefaultConfig()
	cfg.MaxReversals = 3
	res, err := r.Run(context.Background(), Track{Config: cfg, Responder: script(true, true, false, false)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Track != "default" || res.SessionID == "" {
		t.Fatalf("unexpected result identity %+v", res)
	}
	if res.Final.RevCount != 3 {
		t.Fatalf("expected 3 reversals, got %d", res.Final.RevCount)
	}
}

func TestRunStopsAtResponseCap(t *testing.T) {
	st := tempStore(t)
	r := NewRunner(WithStore(st), WithMaxResponses(50), WithLogger(quietLogger()))
	cfg := staircase.DefaultConfig()
	cfg.RightRule = 1

	// Always correct: pinned at the floor, never reverses, never finishes.
	res, err := r.Run(context.Background(), Track{Config: cfg, Responder: script(true)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Capped || res.Finished() || res.Responses != 50 {
		t.Fatalf("expected capped unfinished run of 50, got %+v", res)
	}
	if res.Final.CurLevel != 1 {
		t.Fatalf("expected level clamped at 1, got %g", res.Final.CurLevel)
	}
	rec, err := st.GetSession(res.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(rec.FinishReasons) != 1 || rec.FinishReasons[0] != FinishResponseCap {
		t.Fatalf("unexpected stored reasons %v", rec.FinishReasons)
	}
	if !math.IsNaN(rec.Threshold) {
		t.Fatalf("expected NaN threshold, got %g", rec.Threshold)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := 0
	resp := ResponderFunc(func(ctx context.Context, level float64) (bool, error) {
		n++
		if n == 3 {
			cancel()
		}
		return n%2 == 0, nil
	})

	res, err := NewRunner(WithLogger(quietLogger())).Run(ctx, Track{Config: staircase.DefaultConfig(), Responder: resp})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Responses != 3 {
		t.Fatalf("expected 3 responses before cancellation, got %d", res.Responses)
	}
}

func TestRunResponderError(t *testing.T) {
	boom := errors.New("boom")
	resp := ResponderFunc(func(ctx context.Context, level float64) (bool, error) {
		return false, boom
	})
	_, err := NewRunner(WithLogger(quietLogger())).Run(context.Background(), Track{Config: staircase.DefaultConfig(), Responder: resp})
	if !errors.Is(err, boom) {
		t.Fatalf("expected responder error, got %v", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	st := tempStore(t)
	cfg := staircase.DefaultConfig()
	cfg.StepSize = 0
	_, err := NewRunner(WithStore(st), WithLogger(quietLogger())).Run(context.Background(), Track{Config: cfg, Responder: script(true)})
	if !errors.Is(err, staircase.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	sessions, err := st.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("invalid track should not create a session, got %d", len(sessions))
	}
}

func TestRunInterleaved(t *testing.T) {
	st := tempStore(t)
	r := NewRunner(WithStore(st), WithLogger(quietLogger()))

	cfg := staircase.Config{
		Levels:               []float64{8, 10, 12, 14, 16, 32, 64},
		InitStepSize:         6,
		StepSize:             3,
		RightRule:            3,
		WrongRule:            1,
		MaxTrials:            100,
		MaxReversals:         10,
		StartLevel:           12,
		CeilingBehaviour:     staircase.Limiting,
		MaxCeilingIncrements: math.Inf(1),
	}
	tracks := make([]Track, 4)
	for i := range tracks {
		tracks[i] = Track{Config: cfg, Responder: observer.New(observer.DefaultNoiseSD, uint64(i+1), nil)}
	}

	results, err := r.RunInterleaved(context.Background(), tracks)
	if err != nil {
		t.Fatalf("RunInterleaved: %v", err)
	}
	seen := map[string]bool{}
	for i, res := range results {
		if want := "track-" + string(rune('1'+i)); res.Track != want {
			t.Errorf("result %d: track %q, want %q", i, res.Track, want)
		}
		if !res.Finished() {
			t.Errorf("track %s did not finish", res.Track)
		}
		seen[res.SessionID] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct sessions, got %d", len(seen))
	}
	sessions, err := st.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 4 {
		t.Fatalf("expected 4 stored sessions, got %d", len(sessions))
	}
}

func TestRunInterleavedPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	tracks := []Track{
		{Config: staircase.DefaultConfig(), Responder: script(true, false)},
		{Config: staircase.DefaultConfig(), Responder: ResponderFunc(func(ctx context.Context, level float64) (bool, error) {
			return false, boom
		})},
	}
	_, err := NewRunner(WithLogger(quietLogger())).RunInterleaved(context.Background(), tracks)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
