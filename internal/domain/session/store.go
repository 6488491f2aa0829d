package session

import (
	"errors"
	"sync"
	"time"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
	"github.com/forgeworks/appforge/internal/shared/id"
)

// ErrNotFound is returned for an explicit but unrecognized session id on
// operations that forbid implicit creation.
var ErrNotFound = errors.New("session not found")

// BuildStatus is the per-session build state machine.
type BuildStatus string

const (
	StatusIdle        BuildStatus = "idle"
	StatusPlanning    BuildStatus = "planning"
	StatusScaffolding BuildStatus = "scaffolding"
	StatusGenerating  BuildStatus = "generating"
	StatusRendering   BuildStatus = "rendering"

	// Terminal build outcomes. Reported through results, events, and
	// metrics; the stored session settles back to idle between builds.
	StatusReady  BuildStatus = "ready"
	StatusFailed BuildStatus = "failed"
)

// HistoryEntry is one applied delta, kept for auditability.
type HistoryEntry struct {
	AppliedAt      time.Time       `json:"applied_at"`
	Delta          blueprint.Delta `json:"delta"`
	NewCollections []string        `json:"new_collections,omitempty"`
}

// Artifacts are the output locations of the last successful build.
type Artifacts struct {
	AppURL      string `json:"app_url"`
	HTTPURL     string `json:"http_url"`
	DownloadURL string `json:"download_url"`
}

// Session is an immutable snapshot of one revision session. Mutation goes
// through the Store, which hands copies outward.
type Session struct {
	ID        string              `json:"id"`
	Blueprint blueprint.Blueprint `json:"blueprint"`
	History   []HistoryEntry      `json:"history"`
	Status    BuildStatus         `json:"status"`
	LastError string              `json:"last_error,omitempty"`
	Artifacts *Artifacts          `json:"artifacts,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// managed is the store-internal mutable record; mu serializes writes for
// this session id while other sessions proceed in parallel.
type managed struct {
	mu sync.Mutex
	s  Session
}

// Store is the process-wide session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*managed
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*managed),
	}
}

// GetOrCreate returns the session for the given id, allocating a fresh
// session with an empty default blueprint when the id is empty or unknown.
// Safe under concurrent calls with the same id: the same session is
// returned, duplicates are never created. The second return reports
// whether a session was created.
func (st *Store) GetOrCreate(sessionID string) (Session, bool) {
	if sessionID != "" {
		st.mu.RLock()
		m, ok := st.sessions[sessionID]
		st.mu.RUnlock()
		if ok {
			return m.snapshot(), false
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if sessionID == "" {
		sessionID = id.NewSessionID().String()
	} else if m, ok := st.sessions[sessionID]; ok {
		// Lost the race to another creator
		return m.snapshot(), false
	}

	now := time.Now()
	m := &managed{s: Session{
		ID:        sessionID,
		Blueprint: blueprint.New(),
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	st.sessions[sessionID] = m
	return m.snapshot(), true
}

// Get returns the session for an explicit id, or ErrNotFound.
func (st *Store) Get(sessionID string) (Session, error) {
	st.mu.RLock()
	m, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	return m.snapshot(), nil
}

// Apply merges delta into the session's blueprint, appends it to history,
// and returns the updated session with the merge report. The session is
// created when the id is empty or unknown.
func (st *Store) Apply(sessionID string, delta blueprint.Delta) (Session, *blueprint.Report, error) {
	snap, _ := st.GetOrCreate(sessionID)

	st.mu.RLock()
	m := st.sessions[snap.ID]
	st.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	merged, report := blueprint.Merge(m.s.Blueprint, delta)
	m.s.Blueprint = merged
	m.s.History = append(m.s.History, HistoryEntry{
		AppliedAt:      time.Now(),
		Delta:          delta,
		NewCollections: report.NewCollections,
	})
	m.s.UpdatedAt = time.Now()

	return m.snapshotLocked(), report, nil
}

// SetStatus transitions the session's build status.
func (st *Store) SetStatus(sessionID string, status BuildStatus) {
	st.update(sessionID, func(s *Session) {
		s.Status = status
		if status != StatusFailed {
			s.LastError = ""
		}
	})
}

// SetFailure records a failure reason and resets the session to idle with
// its last good blueprint and artifacts intact.
func (st *Store) SetFailure(sessionID, reason string) {
	st.update(sessionID, func(s *Session) {
		s.Status = StatusIdle
		s.LastError = reason
	})
}

// SetArtifacts records the output locations of a successful build.
func (st *Store) SetArtifacts(sessionID string, a Artifacts) {
	st.update(sessionID, func(s *Session) {
		s.Artifacts = &a
	})
}

// List returns snapshots of all sessions.
func (st *Store) List() []Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]Session, 0, len(st.sessions))
	for _, m := range st.sessions {
		out = append(out, m.snapshot())
	}
	return out
}

// Stats contains store statistics.
type Stats struct {
	TotalSessions int `json:"total_sessions"`
}

// Stats returns store statistics.
func (st *Store) Stats() Stats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return Stats{TotalSessions: len(st.sessions)}
}

func (st *Store) update(sessionID string, fn func(*Session)) {
	st.mu.RLock()
	m, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.s)
	m.s.UpdatedAt = time.Now()
}

func (m *managed) snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// snapshotLocked deep-copies the session; callers get no aliases into
// store-owned state.
func (m *managed) snapshotLocked() Session {
	out := m.s
	out.Blueprint = m.s.Blueprint.Clone()
	out.History = append([]HistoryEntry(nil), m.s.History...)
	if m.s.Artifacts != nil {
		a := *m.s.Artifacts
		out.Artifacts = &a
	}
	return out
}
