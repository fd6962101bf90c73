package report

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hashtagcpt/psychophysics-parrot/internal/session"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func TestBuildSpreadStatistics(t *testing.T) {
	tallies := store.TalliesFrom([]float64{1, 2, 3}, []int{0, 6, 5}, []int{0, 3, 4})
	s := Build("a", "sid", 11, []float64{2, 3, 2, 3, 2}, tallies, []string{"max_reversals"})

	assert.Equal(t, 5, s.Reversals)
	assert.InDelta(t, 2.5, s.Threshold, 1e-12)
	assert.InDelta(t, 2.5, s.ReversalMedian, 1e-12)
	assert.InDelta(t, 1.0, s.ReversalIQR, 1e-12)
	assert.Equal(t, 2.0, s.ReversalMin)
	assert.Equal(t, 3.0, s.ReversalMax)

	require.Len(t, s.Levels, 3)
	assert.Nil(t, s.Levels[0].PCorrect)
	require.NotNil(t, s.Levels[1].PCorrect)
	assert.InDelta(t, 0.5, *s.Levels[1].PCorrect, 1e-12)
	assert.InDelta(t, 0.8, *s.Levels[2].PCorrect, 1e-12)
}

func TestBuildTooFewReversals(t *testing.T) {
	s := Build("a", "", 4, []float64{4, 5}, nil, nil)
	assert.True(t, math.IsNaN(s.Threshold))
	assert.True(t, math.IsNaN(s.ThresholdError))
	assert.True(t, math.IsNaN(s.ReversalMedian))
	assert.True(t, math.IsNaN(s.ReversalIQR))
}

func TestFromResult(t *testing.T) {
	res := session.Result{
		SessionID: "sid",
		Track:     "t1",
		Responses: 3,
		Capped:    true,
		Levels:    []float64{1, 2},
		Final: staircase.State{
			Reversals: []float64{1, 2, 1},
			NTrials:   []int{2, 1},
			NCorrect:  []int{1, 1},
		},
	}
	s := FromResult(res)
	assert.Equal(t, []string{session.FinishResponseCap}, s.FinishReasons)
	assert.InDelta(t, 1.5, s.Threshold, 1e-12)
	require.Len(t, s.Levels, 2)
	assert.Equal(t, 2, s.Levels[0].NTrials)
}

func TestFromStore(t *testing.T) {
	rec := store.SessionRecord{SessionID: "sid", Track: "t", FinishReasons: []string{"max_trials"}}
	trials := []store.TrialRecord{
		{Response: 1, Level: 3},
		{Response: 2, Level: 2, Reversal: true},
		{Response: 3, Level: 3, Reversal: true},
		{Response: 4, Level: 4, Reversal: true},
	}
	s := FromStore(rec, trials, nil)
	assert.Equal(t, 4, s.Responses)
	assert.Equal(t, 3, s.Reversals)
	assert.InDelta(t, 3.5, s.Threshold, 1e-12)
	assert.Equal(t, []string{"max_trials"}, s.FinishReasons)
}

func TestWriteYAML(t *testing.T) {
	tallies := store.TalliesFrom([]float64{1, 2}, []int{1, 0}, []int{1, 0})
	s := Build("left", "sid", 1, nil, tallies, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, []Summary{s}))

	var back []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 1)
	assert.Equal(t, "left", back[0]["track"])
	assert.Contains(t, buf.String(), "threshold: .nan")

	levels, ok := back[0]["levels"].([]any)
	require.True(t, ok)
	require.Len(t, levels, 2)
	second := levels[1].(map[string]any)
	_, hasP := second["p_correct"]
	assert.False(t, hasP, "untested level should omit p_correct")
}

func TestWriteText(t *testing.T) {
	tallies := store.TalliesFrom([]float64{8, 10}, []int{4, 0}, []int{3, 0})
	summaries := []Summary{
		Build("left", "", 4, []float64{8, 10, 8, 10}, tallies, []string{"max_reversals"}),
		Build("right", "", 0, nil, nil, nil),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, summaries))
	out := buf.String()

	assert.Contains(t, out, "Track: left")
	assert.Contains(t, out, "Finished: max_reversals")
	assert.Contains(t, out, "0.75")
	assert.Contains(t, out, "Track: right")
	assert.Contains(t, out, "Threshold: n/a ± n/a")
}
