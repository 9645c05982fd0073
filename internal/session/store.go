package session

import (
	"sort"
	"sync"

	"github.com/yaohuangguan/orion-chat/internal/wire"
)

// Store is the single shared in-memory log backing one chat session. It is
// append-only between channel switches; a switch replaces the contents
// wholesale with loaded history. Messages themselves are immutable; only
// the log mutates.
type Store struct {
	mu   sync.RWMutex
	msgs []wire.Message
}

// NewStore creates an empty log.
func NewStore() *Store {
	return &Store{}
}

// Append adds one accepted message at the end of the log.
func (s *Store) Append(msg wire.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

// Replace swaps the whole log for loaded history, sorted ascending by
// timestamp with the incoming order as a stable tiebreak.
func (s *Store) Replace(msgs []wire.Message) {
	sorted := make([]wire.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})

	s.mu.Lock()
	s.msgs = sorted
	s.mu.Unlock()
}

// Clear empties the log.
func (s *Store) Clear() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

// Snapshot returns a copy of the log in insertion order.
func (s *Store) Snapshot() []wire.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]wire.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len reports the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}
