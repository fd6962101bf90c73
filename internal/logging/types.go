package logging

import "time"

// #region event-entry
// EventEntry is a single row in the event_log table.
type EventEntry struct {
	SessionID   string
	Response    int
	Kind        string
	PayloadJSON string
	CreatedAt   time.Time
}

// #endregion event-entry
