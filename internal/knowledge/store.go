// Package knowledge holds the website-derived text that grounds every
// answer: an atomically swappable snapshot that is never empty once the
// store has been primed, durably mirrored so restarts skip the live
// fetch.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FallbackContent is installed when there has never been a successful
// snapshot: no usable durable copy and the live fetch failed. It keeps
// the agent answering until a refresh succeeds.
const FallbackContent = "Knowledge base temporarily unavailable. Please refer users to the official website for current information."

// settingKey is the fixed durable slot for the mirrored snapshot.
const settingKey = "knowledge.snapshot"

// ErrEmptyContent rejects a replacement snapshot with no visible text.
var ErrEmptyContent = errors.New("knowledge content is empty")

// Snapshot is an immutable knowledge state. A zero FetchedAt marks the
// compiled-in fallback rather than fetched content.
type Snapshot struct {
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Source produces fresh knowledge text.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// Mirror persists snapshots across restarts. *timeline.Service
// satisfies it.
type Mirror interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Store is the live knowledge snapshot. Readers load the current
// pointer; writers swap the whole value, so a reader never observes a
// partial update.
type Store struct {
	source Source
	mirror Mirror

	current atomic.Pointer[Snapshot]
	primeMu sync.Mutex
}

// NewStore creates an unprimed Store.
func NewStore(source Source, mirror Mirror) *Store {
	return &Store{source: source, mirror: mirror}
}

// Read returns the current knowledge text, never empty. On a cold store
// it primes synchronously first.
func (s *Store) Read(ctx context.Context) string {
	if snap := s.current.Load(); snap != nil {
		return snap.Content
	}
	s.Prime(ctx)
	return s.current.Load().Content
}

// Current returns the installed snapshot, or nil before the first prime.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Prime installs the first snapshot: durable mirror first, then the live
// source, then the compiled-in fallback. It never leaves the store
// empty. Concurrent callers share one prime.
func (s *Store) Prime(ctx context.Context) {
	s.primeMu.Lock()
	defer s.primeMu.Unlock()
	if s.current.Load() != nil {
		return
	}

	// A mirrored fallback (zero FetchedAt) does not count as a hit:
	// the source deserves another try on every cold start.
	if snap, ok := LoadMirrored(s.mirror); ok && !snap.FetchedAt.IsZero() {
		s.current.Store(snap)
		slog.Info("Knowledge primed from mirror", "bytes", len(snap.Content), "fetched_at", snap.FetchedAt)
		return
	}

	content, err := s.source.Fetch(ctx)
	if err == nil {
		err = s.Replace(content)
		if err == nil {
			slog.Info("Knowledge primed from source", "bytes", len(content))
			return
		}
	}

	slog.Warn("Knowledge prime failed, installing fallback", "error", err)
	fallback := &Snapshot{Content: FallbackContent}
	s.current.Store(fallback)
	s.persist(fallback)
}

// Replace atomically installs new content. Empty or whitespace-only
// content is rejected and the previous snapshot stays untouched: stale
// knowledge beats no knowledge. The durable mirror is written after the
// swap, best-effort.
func (s *Store) Replace(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	snap := &Snapshot{Content: content, FetchedAt: time.Now().UTC()}
	s.current.Store(snap)
	s.persist(snap)
	return nil
}

// Refresh fetches from the source and swaps the result in.
func (s *Store) Refresh(ctx context.Context) error {
	content, err := s.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch knowledge: %w", err)
	}
	return s.Replace(content)
}

// LoadMirrored returns the snapshot persisted in the mirror, if it
// holds one with visible content. Inspection tools use it to look at
// the durable copy without priming a store.
func LoadMirrored(m Mirror) (*Snapshot, bool) {
	raw, err := m.GetSetting(settingKey)
	if err != nil || raw == "" {
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil || strings.TrimSpace(snap.Content) == "" {
		return nil, false
	}
	return &snap, true
}

func (s *Store) persist(snap *Snapshot) {
	raw, err := json.Marshal(snap)
	if err == nil {
		err = s.mirror.SetSetting(settingKey, string(raw))
	}
	if err != nil {
		slog.Warn("Knowledge mirror write failed", "error", err)
	}
}
