package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashtagcpt/psychophysics-parrot/internal/replay"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// simulated runs one stored simulation in a fresh working directory and
// returns the directory, database path and session ID.
func simulated(t *testing.T) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	db := filepath.Join(dir, "parrot.db")

	_, err := run(t, "simulate", "--db", db, "--seed", "7")
	require.NoError(t, err)

	st, err := store.NewStore(db)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.ListSessions(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	return dir, db, sessions[0].SessionID
}

func TestSimulateWritesExports(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := run(t, "simulate", "--format", "yaml", "--csv", "tallies.csv", "--xlsx", "run.xlsx")
	require.NoError(t, err)
	assert.Contains(t, out, "track: track-1")
	assert.Contains(t, out, "finish_reasons:")

	b, err := os.ReadFile(filepath.Join(dir, "tallies.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "logLev,nTrials,nCorrect", lines[0])
	assert.Len(t, lines, 8, "header plus the seven default levels")

	_, err = os.Stat(filepath.Join(dir, "run.xlsx"))
	assert.NoError(t, err)
}

func TestSimulateInterleavedTracks(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := run(t, "simulate", "--tracks", "2", "--csv", "out.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Track: track-1")
	assert.Contains(t, out, "Track: track-2")

	for _, name := range []string{"out-track-1.csv", "out-track-2.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestSimulateUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".parrot.yaml"), []byte(`
staircase:
  levels: [0, 10, 20, 30, 40]
  init_step_size: 10
  step_size: 10
  right_rule: 2
  wrong_rule: 1
  max_revs: 4
  start_level: 20
`), 0o644))

	out, err := run(t, "simulate", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "level: 40")
	assert.NotContains(t, out, "level: 64")
}

func TestSimulateRejectsBadFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := run(t, "simulate", "--format", "xml")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	_, db, id := simulated(t)

	out, err := run(t, "inspect", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "track-1")
	assert.Contains(t, out, id[:12])

	out, err = run(t, "inspect", "--db", db, "--json")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0]["session_id"])

	out, err = run(t, "inspect", "--db", db, "--session", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Track: track-1")
	assert.Contains(t, out, "P(CORRECT)")

	_, err = run(t, "inspect", "--db", db, "--session", "missing")
	assert.Error(t, err)
}

func TestExportFixtureAndReplay(t *testing.T) {
	dir, db, id := simulated(t)
	fixture := filepath.Join(dir, "fixture.json")

	out, err := run(t, "export-fixture", "--db", db, "--session", id, "--out", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "exported")

	f, err := replay.LoadFixture(fixture)
	require.NoError(t, err)
	assert.Equal(t, len(f.Responses), len(f.ExpectedSteps))

	out, err = run(t, "replay", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}

func TestReplayFromDB(t *testing.T) {
	_, db, id := simulated(t)

	out, err := run(t, "replay", "--db", db, "--session", id)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.NotContains(t, out, "DIVERGENCE")
}

func TestReplayDetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// Two correct responses under 2-down/2-up move the level from 3 to 2.
	f := &replay.Fixture{
		Description: "tampered",
		Config:      staircase.DefaultConfig(),
		Responses:   []bool{true, true},
		ExpectedSteps: []replay.FixtureExpectedStep{
			{Response: 1, Action: replay.ActionHold, Level: 3},
			{Response: 2, Action: replay.ActionHold, Level: 3},
		},
	}
	path := filepath.Join(dir, "tampered.json")
	require.NoError(t, replay.SaveFixture(path, f))

	out, err := run(t, "replay", "--fixture", path)
	assert.Error(t, err)
	assert.Contains(t, out, "DIVERGENCE response 2: action")
	assert.Contains(t, out, "DIVERGENCE response 2: level")
}

func TestReplayRequiresOneSource(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := run(t, "replay")
	assert.Error(t, err)
	_, err = run(t, "replay", "--db", "x.db")
	assert.Error(t, err)
}

func TestTrackPath(t *testing.T) {
	assert.Equal(t, "out.csv", trackPath("out.csv", "track-1", false))
	assert.Equal(t, "dir/out-track-2.csv", trackPath("dir/out.csv", "track-2", true))
	assert.Equal(t, "out-track-1", trackPath("out", "track-1", true))
}
