package session

import (
	"sort"
	"sync"

	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// Registry tracks the sessions held by this process, keyed by session ID.
// It is the only structure shared between concurrent acquisitions.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Add registers a handle under its session ID
func (r *Registry) Add(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.SessionID()] = h
}

// Remove drops a session; it reports whether it was present
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[id]; !ok {
		return false
	}
	delete(r.handles, id)
	return true
}

// Get returns the handle for a session
func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Handles returns every registered handle
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	return handles
}

// List returns snapshots of registered sessions ordered by creation time,
// optionally filtered by state
func (r *Registry) List(state models.SessionState) []models.Session {
	r.mu.RLock()
	sessions := make([]models.Session, 0, len(r.handles))
	for _, h := range r.handles {
		snap := h.Session()
		if state != "" && snap.State != state {
			continue
		}
		sessions = append(sessions, snap)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
