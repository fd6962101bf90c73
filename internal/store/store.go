package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// TimeLayout is the fixed-width UTC form of every stored timestamp, so text
// order in SQLite matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id      TEXT PRIMARY KEY,
	track           TEXT NOT NULL DEFAULT '',
	config_json     TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	finished_at     TEXT,
	threshold       REAL,
	threshold_error REAL,
	finish_reasons  TEXT
);

CREATE TABLE IF NOT EXISTS trials (
	session_id   TEXT NOT NULL,
	response     INTEGER NOT NULL,
	level        REAL NOT NULL,
	level_index  INTEGER NOT NULL,
	correct      INTEGER NOT NULL,
	reversal     INTEGER NOT NULL,
	rev_count    INTEGER NOT NULL,
	trial_count  INTEGER NOT NULL,
	next_level   REAL NOT NULL,
	direction    TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (session_id, response),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS level_tallies (
	session_id   TEXT NOT NULL,
	level_index  INTEGER NOT NULL,
	level        REAL NOT NULL,
	n_trials     INTEGER NOT NULL,
	n_correct    INTEGER NOT NULL,
	PRIMARY KEY (session_id, level_index),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS event_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	response     INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	payload_json TEXT,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// #endregion schema

// #region store-struct
// Store persists staircase sessions in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer, and the pragmas below are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region sessions
// CreateSession inserts a new, unfinished session.
func (s *Store) CreateSession(rec SessionRecord) error {
	cfgJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (session_id, track, config_json, created_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Track, string(cfgJSON), FormatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.SessionID, err)
	}
	return nil
}

// FinishSession records the final estimate and termination reasons.
func (s *Store) FinishSession(sessionID string, threshold, thresholdErr float64, reasons []string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET finished_at = ?, threshold = ?, threshold_error = ?, finish_reasons = ?
		 WHERE session_id = ?`,
		FormatTime(time.Now()),
		nullIfNaN(threshold), nullIfNaN(thresholdErr),
		strings.Join(reasons, ","), sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// sessionColumns ends with the session's trial count so listings need no
// per-session query.
const sessionColumns = `session_id, track, config_json, created_at, finished_at, threshold, threshold_error, finish_reasons,
	(SELECT COUNT(*) FROM trials WHERE trials.session_id = sessions.session_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var rec SessionRecord
	var cfgJSON, createdStr string
	var finishedStr, reasons sql.NullString
	var thresh, threshErr sql.NullFloat64

	if err := row.Scan(&rec.SessionID, &rec.Track, &cfgJSON, &createdStr, &finishedStr, &thresh, &threshErr, &reasons, &rec.Responses); err != nil {
		return SessionRecord{}, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return SessionRecord{}, fmt.Errorf("unmarshal config: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if finishedStr.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
	}
	rec.Threshold, rec.ThresholdError = math.NaN(), math.NaN()
	if thresh.Valid {
		rec.Threshold = thresh.Float64
	}
	if threshErr.Valid {
		rec.ThresholdError = threshErr.Float64
	}
	if reasons.Valid && reasons.String != "" {
		rec.FinishReasons = strings.Split(reasons.String, ",")
	}
	return rec, nil
}

// GetSession retrieves one session by ID.
func (s *Store) GetSession(id string) (SessionRecord, error) {
	rec, err := scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id))
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion sessions

// #region trials
// AppendTrial inserts one response row.
func (s *Store) AppendTrial(rec TrialRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO trials (session_id, response, level, level_index, correct, reversal, rev_count, trial_count, next_level, direction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Response, rec.Level, rec.LevelIndex, rec.Correct, rec.Reversal,
		rec.RevCount, rec.TrialCount, rec.NextLevel, rec.Direction.String(),
		FormatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert trial %s/%d: %w", rec.SessionID, rec.Response, err)
	}
	return nil
}

// ListTrials returns a session's responses in order.
func (s *Store) ListTrials(sessionID string) ([]TrialRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, response, level, level_index, correct, reversal, rev_count, trial_count, next_level, direction, created_at
		 FROM trials WHERE session_id = ? ORDER BY response ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var records []TrialRecord
	for rows.Next() {
		var rec TrialRecord
		var dir, createdStr string
		if err := rows.Scan(&rec.SessionID, &rec.Response, &rec.Level, &rec.LevelIndex, &rec.Correct,
			&rec.Reversal, &rec.RevCount, &rec.TrialCount, &rec.NextLevel, &dir, &createdStr); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		if err := rec.Direction.UnmarshalText([]byte(dir)); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion trials

// #region tallies
// SaveTallies replaces the per-level counters of a session atomically.
func (s *Store) SaveTallies(sessionID string, tallies []LevelTally) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tallies {
		_, err := tx.Exec(
			`INSERT INTO level_tallies (session_id, level_index, level, n_trials, n_correct) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(session_id, level_index) DO UPDATE SET
			   level = excluded.level, n_trials = excluded.n_trials, n_correct = excluded.n_correct`,
			sessionID, t.LevelIndex, t.Level, t.NTrials, t.NCorrect,
		)
		if err != nil {
			return fmt.Errorf("upsert tally %d: %w", t.LevelIndex, err)
		}
	}
	return tx.Commit()
}

// GetTallies returns the stored per-level counters in grid order.
func (s *Store) GetTallies(sessionID string) ([]LevelTally, error) {
	rows, err := s.db.Query(
		`SELECT level_index, level, n_trials, n_correct FROM level_tallies
		 WHERE session_id = ? ORDER BY level_index ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get tallies: %w", err)
	}
	defer rows.Close()

	var out []LevelTally
	for rows.Next() {
		var t LevelTally
		if err := rows.Scan(&t.LevelIndex, &t.Level, &t.NTrials, &t.NCorrect); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// #endregion tallies

func nullIfNaN(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}
