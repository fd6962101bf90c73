package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func seededServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.CreateSession(store.SessionRecord{SessionID: "s1", Track: "left", Config: staircase.DefaultConfig()}))
	levels := []float64{2, 3, 2, 3}
	for i, l := range levels {
		require.NoError(t, st.AppendTrial(store.TrialRecord{
			SessionID: "s1", Response: i + 1, Level: l, LevelIndex: int(l) - 1,
			Correct: i%2 == 0, Reversal: i > 0, RevCount: i, NextLevel: l, Direction: staircase.DirectionUp,
		}))
	}
	require.NoError(t, st.SaveTallies("s1", store.TalliesFrom([]float64{1, 2, 3}, []int{0, 2, 2}, []int{0, 1, 1})))
	require.NoError(t, st.FinishSession("s1", 2.5, 0.3, []string{"max_reversals"}))

	require.NoError(t, st.CreateSession(store.SessionRecord{SessionID: "s2", Track: "right", Config: staircase.DefaultConfig()}))
	return NewServer(st), st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListSessions(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv, "/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	ids := []any{out[0]["session_id"], out[1]["session_id"]}
	assert.ElementsMatch(t, []any{"s1", "s2"}, ids)

	rec = get(t, srv, "/sessions?limit=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 1)

	rec = get(t, srv, "/sessions?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession(t *testing.T) {
	srv, _ := seededServer(t)

	rec := get(t, srv, "/sessions/s1")
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "left", out["track"])
	assert.Equal(t, 2.5, out["threshold"])
	assert.Equal(t, []any{"max_reversals"}, out["finish_reasons"])
	assert.NotNil(t, out["finished_at"])
	cfg := out["config"].(map[string]any)
	assert.Equal(t, "limiting", cfg["ceiling_behaviour"])

	rec = get(t, srv, "/sessions/s2")
	require.Equal(t, http.StatusOK, rec.Code)
	out = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Nil(t, out["threshold"])
	_, finished := out["finished_at"]
	assert.False(t, finished)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := seededServer(t)
	for _, path := range []string{"/sessions/nope", "/sessions/nope/trials", "/sessions/nope/tallies", "/sessions/nope/summary"} {
		rec := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestTrials(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv, "/sessions/s1/trials")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []trialView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 4)
	assert.Equal(t, 1, out[0].Response)
	assert.Equal(t, staircase.DirectionUp, out[3].Direction)
	assert.True(t, out[3].Reversal)
}

func TestTallies(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv, "/sessions/s1/tallies")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []tallyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Nil(t, out[0].PCorrect)
	require.NotNil(t, out[1].PCorrect)
	assert.InDelta(t, 0.5, *out[1].PCorrect, 1e-12)
}

func TestSummary(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv, "/sessions/s1/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "track: left")
	assert.Contains(t, rec.Body.String(), "reversals: 3")
}
