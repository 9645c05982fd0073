// Package presence tracks which users are currently connected, based on
// full snapshots pushed by the server. Snapshots replace each other
// wholesale; there is no incremental reconciliation, so a user missing from
// the latest snapshot counts as offline even if the delivery was merely
// delayed.
package presence

import (
	"sort"
	"sync"

	"github.com/yaohuangguan/orion-chat/internal/wire"
)

// User is one online user from the most recent snapshot.
type User struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
}

// Tracker holds the latest presence snapshot.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]User
}

// NewTracker creates an empty tracker; everyone is offline until the first
// snapshot arrives.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]User)}
}

// Apply replaces the current snapshot with the given one.
func (t *Tracker) Apply(snapshot wire.PresenceSnapshot) {
	next := make(map[string]User, len(snapshot))
	for id, u := range snapshot {
		next[id] = User{ID: id, Name: u.DisplayName, Email: u.Email, PhotoURL: u.PhotoURL}
	}
	t.mu.Lock()
	t.online = next
	t.mu.Unlock()
}

// IsOnline reports membership in the most recent snapshot.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

// Users returns the current snapshot sorted by display name.
func (t *Tracker) Users() []User {
	t.mu.RLock()
	out := make([]User, 0, len(t.online))
	for _, u := range t.online {
		out = append(out, u)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
