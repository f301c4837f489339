package pty

import (
	"sort"
	"sync"
)

// Registry maps session ids to live sessions. Sessions are added when
// created and removed when they reach StateClosed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]*Session)}
}

var sessions = NewRegistry()

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Lookup returns the live session with the given id.
func (r *Registry) Lookup(id uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the ids of all live sessions in ascending order.
func (r *Registry) IDs() []uint64 {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lookup returns the live session with the given id from the process-wide registry.
func Lookup(id uint64) (*Session, bool) {
	return sessions.Lookup(id)
}

// Live returns the process-wide registry.
func Live() *Registry {
	return sessions
}
