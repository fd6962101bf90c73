package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

// #region log-event
// LogEvent writes one staircase event to the event_log table.
func LogEvent(db *sql.DB, entry EventEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO event_log (session_id, response, kind, payload_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Response,
		entry.Kind,
		nullIfEmpty(entry.PayloadJSON),
		store.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// ListEvents reads back a session's events in insertion order.
func ListEvents(db *sql.DB, sessionID string) ([]EventEntry, error) {
	rows, err := db.Query(
		`SELECT session_id, response, kind, payload_json, created_at FROM event_log
		 WHERE session_id = ? ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventEntry
	for rows.Next() {
		var e EventEntry
		var payload sql.NullString
		var created string
		if err := rows.Scan(&e.SessionID, &e.Response, &e.Kind, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.PayloadJSON = payload.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-event

// #region provenance-sink
// ProvenanceSink persists every staircase event of one session. Emit cannot
// return an error, so the first failure is kept for Err and later events are dropped.
type ProvenanceSink struct {
	db        *sql.DB
	sessionID string

	mu  sync.Mutex
	err error
}

// NewProvenanceSink returns a sink writing to db under sessionID.
func NewProvenanceSink(db *sql.DB, sessionID string) *ProvenanceSink {
	return &ProvenanceSink{db: db, sessionID: sessionID}
}

// Emit implements staircase.Sink.
func (p *ProvenanceSink) Emit(e staircase.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		p.err = fmt.Errorf("marshal event: %w", err)
		return
	}
	p.err = LogEvent(p.db, EventEntry{
		SessionID:   p.sessionID,
		Response:    e.Response,
		Kind:        string(e.Kind),
		PayloadJSON: string(payload),
	})
}

// Err returns the first write error, if any.
func (p *ProvenanceSink) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// #endregion provenance-sink

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
