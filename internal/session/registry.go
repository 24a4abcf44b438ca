package session

import (
	"sort"
	"sync"
	"time"

	"tabcap/internal/protocol"
)

// Registry is the authoritative map of tab to active recording session.
// The coordinator is its single writer; every other component observes
// session state only through coordinator responses.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]*Session)}
}

// Register inserts a session for its tab. A tab with any existing session,
// regardless of state, rejects the insert with ErrAlreadyRecording and the
// existing session is left untouched.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.TabID]; exists {
		return protocol.ErrAlreadyRecording
	}
	r.sessions[s.TabID] = s
	return nil
}

// Get returns the session for a tab, or ErrNoActiveRecording.
func (r *Registry) Get(tabID int) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.sessions[tabID]
	if !exists {
		return nil, protocol.ErrNoActiveRecording
	}
	return s, nil
}

// Exists reports whether a tab has an active session.
func (r *Registry) Exists(tabID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sessions[tabID]
	return exists
}

// SetState transitions the session for a tab. Missing tabs report
// ErrNoActiveRecording so callers can treat the transition as already
// resolved by a concurrent force-stop.
func (r *Registry) SetState(tabID int, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.sessions[tabID]
	if !exists {
		return protocol.ErrNoActiveRecording
	}
	s.State = state
	return nil
}

// MarkRecording transitions a tab to Recording and stamps its start time
// in one locked step, so concurrent snapshot readers never observe a
// half-written session. Missing tabs report ErrNoActiveRecording.
func (r *Registry) MarkRecording(tabID int, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.sessions[tabID]
	if !exists {
		return protocol.ErrNoActiveRecording
	}
	s.State = StateRecording
	s.StartedAt = startedAt
	return nil
}

// Remove deletes the session for a tab, reporting whether one existed.
func (r *Registry) Remove(tabID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.sessions[tabID]
	delete(r.sessions, tabID)
	return exists
}

// ForceRemove unconditionally clears a tab. It never fails: clearing a tab
// that has no session is the recovery path working as intended.
func (r *Registry) ForceRemove(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tabID)
}

// Active returns copies of all registered sessions ordered by tab.
func (r *Registry) Active() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}
