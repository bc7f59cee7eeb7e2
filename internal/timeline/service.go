// Package timeline is the agent's local history: an append-only event log
// plus a small settings table that doubles as durable key/value storage.
package timeline

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Service struct {
	db *sql.DB

	mu     sync.Mutex
	notify func(Event)
}

func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Service{db: db}, nil
}

// OnEvent registers fn to run after each successfully stored event.
// Sinks that must not block storage should hand off to their own queue.
func (s *Service) OnEvent(fn func(Event)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func (s *Service) DB() *sql.DB { return s.db }

func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) AddEvent(evt *Event) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	query := `
	INSERT INTO events (event_id, timestamp, kind, channel, chat_id, detail)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		evt.EventID,
		evt.Timestamp,
		evt.Kind,
		evt.Channel,
		evt.ChatID,
		evt.Detail,
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn(*evt)
	}
	return nil
}

// LogEvent is the fire-and-forget form of AddEvent used on hot paths.
func (s *Service) LogEvent(kind, channel, chatID, detail string) error {
	return s.AddEvent(&Event{Kind: kind, Channel: channel, ChatID: chatID, Detail: detail})
}

type FilterArgs struct {
	Kind    string
	Channel string
	Limit   int
	Offset  int
}

func (s *Service) Events(filter FilterArgs) ([]Event, error) {
	query := `SELECT id, event_id, timestamp, kind, COALESCE(channel,''), COALESCE(chat_id,''), COALESCE(detail,'') FROM events WHERE 1=1`
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Channel != "" {
		query += " AND channel = ?"
		args = append(args, filter.Channel)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.Timestamp,
			&e.Kind,
			&e.Channel,
			&e.ChatID,
			&e.Detail,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// GetSetting returns a setting value by key.
func (s *Service) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetSetting stores a setting value by key.
func (s *Service) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}
