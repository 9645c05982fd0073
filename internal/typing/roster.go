package typing

import (
	"sort"
	"sync"
)

// Roster is the set of remote users currently typing, keyed by display
// name. Entries are added on remote typing events and removed on remote
// stop events only; there is no local timeout, so a dropped stop event
// leaves the name on the roster until the peer types again.
type Roster struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{names: make(map[string]struct{})}
}

// Add marks a remote user as typing. Empty names are ignored.
func (r *Roster) Add(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.names[name] = struct{}{}
	r.mu.Unlock()
}

// Remove clears a remote user's typing state.
func (r *Roster) Remove(name string) {
	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
}

// Names returns the currently typing users sorted alphabetically.
func (r *Roster) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
