package timeline

import (
	"time"
)

// Event is one record in the agent history: a lifecycle transition or a
// handled conversation turn.
type Event struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chat_id"`
	Detail    string    `json:"detail,omitempty"`
}

// Event kinds written by the agent.
const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventSessionFatal   = "session_fatal"
	EventRefreshOK      = "knowledge_refreshed"
	EventRefreshFailed  = "knowledge_refresh_failed"
	EventFallback       = "knowledge_fallback"
	EventQueryAnswered  = "query_answered"
	EventQueryFailed    = "query_failed"
	EventAnnouncement   = "announcement_posted"
	EventRemediation    = "slot_remediation"
)

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT UNIQUE,
	timestamp DATETIME,
	kind TEXT,
	channel TEXT,
	chat_id TEXT,
	detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at DATETIME
);
`
