package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region snapshot
// Snapshot is the wire view of a remote staircase after an RPC.
type Snapshot struct {
	SessionID         string
	Responses         int
	CurLevel          float64
	CurIndex          int
	Direction         staircase.Direction
	TrialCount        int
	RevCount          int
	CeilingIncrements int
	JustReversed      bool
	Finished          bool
	FinishReasons     []string
	Threshold         float64 // NaN while undefined
	ThresholdError    float64
	Reversals         []float64
	NTrials           []int
	NCorrect          []int
}

func snapshotOf(sessionID string, sc *staircase.Staircase) Snapshot {
	st := sc.Snapshot()
	reasons := make([]string, 0, 3)
	for _, r := range sc.FinishReasons() {
		reasons = append(reasons, string(r))
	}
	return Snapshot{
		SessionID:         sessionID,
		Responses:         st.Responses,
		CurLevel:          st.CurLevel,
		CurIndex:          sc.CurIndex(),
		Direction:         st.Direction,
		TrialCount:        st.TrialCount,
		RevCount:          st.RevCount,
		CeilingIncrements: st.CeilingIncrements,
		JustReversed:      st.JustReversed,
		Finished:          len(reasons) > 0,
		FinishReasons:     reasons,
		Threshold:         sc.ReversalThreshold(),
		ThresholdError:    sc.ReversalError(),
		Reversals:         st.Reversals,
		NTrials:           st.NTrials,
		NCorrect:          st.NCorrect,
	}
}

// #endregion snapshot

// #region struct-encoding
func (s Snapshot) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"session_id":         s.SessionID,
		"responses":          s.Responses,
		"cur_level":          s.CurLevel,
		"cur_index":          s.CurIndex,
		"direction":          s.Direction.String(),
		"trial_count":        s.TrialCount,
		"rev_count":          s.RevCount,
		"ceiling_increments": s.CeilingIncrements,
		"just_reversed":      s.JustReversed,
		"finished":           s.Finished,
		"finish_reasons":     stringList(s.FinishReasons),
		"threshold":          nullableFloat(s.Threshold),
		"threshold_error":    nullableFloat(s.ThresholdError),
		"reversals":          floatList(s.Reversals),
		"n_trials":           intList(s.NTrials),
		"n_correct":          intList(s.NCorrect),
	})
}

func snapshotFromStruct(st *structpb.Struct) (Snapshot, error) {
	f := st.GetFields()
	var s Snapshot
	s.SessionID = f["session_id"].GetStringValue()
	s.Responses = int(f["responses"].GetNumberValue())
	s.CurLevel = f["cur_level"].GetNumberValue()
	s.CurIndex = int(f["cur_index"].GetNumberValue())
	if err := s.Direction.UnmarshalText([]byte(f["direction"].GetStringValue())); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	s.TrialCount = int(f["trial_count"].GetNumberValue())
	s.RevCount = int(f["rev_count"].GetNumberValue())
	s.CeilingIncrements = int(f["ceiling_increments"].GetNumberValue())
	s.JustReversed = f["just_reversed"].GetBoolValue()
	s.Finished = f["finished"].GetBoolValue()
	for _, v := range f["finish_reasons"].GetListValue().GetValues() {
		s.FinishReasons = append(s.FinishReasons, v.GetStringValue())
	}
	s.Threshold = floatOrNaN(f["threshold"])
	s.ThresholdError = floatOrNaN(f["threshold_error"])
	for _, v := range f["reversals"].GetListValue().GetValues() {
		s.Reversals = append(s.Reversals, v.GetNumberValue())
	}
	for _, v := range f["n_trials"].GetListValue().GetValues() {
		s.NTrials = append(s.NTrials, int(v.GetNumberValue()))
	}
	for _, v := range f["n_correct"].GetListValue().GetValues() {
		s.NCorrect = append(s.NCorrect, int(v.GetNumberValue()))
	}
	return s, nil
}

func nullableFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func floatOrNaN(v *structpb.Value) float64 {
	if n, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
		return n.NumberValue
	}
	return math.NaN()
}

func stringList(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func floatList(xs []float64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func intList(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// #endregion struct-encoding
