package game

import "sync"

// Registry is the id -> match lookup. Reads dominate; writes are
// serialized by the lock. Matches remove themselves on stop via the
// OnStop hook wired by GetOrCreate's factory caller.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{matches: make(map[string]*Match)}
}

// GetOrCreate returns the match for id, creating it with factory when
// absent. Creation is idempotent: the factory runs under the write lock
// only when id is still absent, so a concurrent create for the same id
// returns the existing handle without calling the factory.
// The bool reports whether a new match was created (and started).
func (r *Registry) GetOrCreate(id string, factory func() *Match) (*Match, bool) {
	r.mu.RLock()
	if m, ok := r.matches[id]; ok {
		r.mu.RUnlock()
		return m, false
	}
	r.mu.RUnlock()

	r.mu.Lock()
	if m, ok := r.matches[id]; ok {
		r.mu.Unlock()
		return m, false
	}
	m := factory()
	r.matches[id] = m
	r.mu.Unlock()

	m.Start()
	return m, true
}

// Get returns the match for id, or nil.
func (r *Registry) Get(id string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matches[id]
}

// Remove drops the handle for id. Called from a match's OnStop hook.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, id)
}

// Count returns the number of live matches.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Range calls fn for every live match; not a hot path.
func (r *Registry) Range(fn func(m *Match) bool) {
	r.mu.RLock()
	handles := make([]*Match, 0, len(r.matches))
	for _, m := range r.matches {
		handles = append(handles, m)
	}
	r.mu.RUnlock()

	for _, m := range handles {
		if !fn(m) {
			return
		}
	}
}
