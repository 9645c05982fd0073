package relay

import (
	"sort"
	"strings"
	"sync"

	"github.com/yaohuangguan/orion-chat/internal/wire"
)

// MessageLog retains relayed messages for the lifetime of the relay
// process and serves the history API from memory. Durable storage is
// deliberately absent; history survives client reconnects, not relay
// restarts.
type MessageLog struct {
	mu      sync.RWMutex
	public  map[string][]wire.Message
	private map[string][]wire.Message
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{
		public:  make(map[string][]wire.Message),
		private: make(map[string][]wire.Message),
	}
}

// AppendPublic records a public room message.
func (l *MessageLog) AppendPublic(roomKey string, msg wire.Message) {
	l.mu.Lock()
	l.public[roomKey] = append(l.public[roomKey], msg)
	l.mu.Unlock()
}

// AppendPrivate records a 1:1 message under the unordered user pair.
func (l *MessageLog) AppendPrivate(userA, userB string, msg wire.Message) {
	key := pairKey(userA, userB)
	l.mu.Lock()
	l.private[key] = append(l.private[key], msg)
	l.mu.Unlock()
}

// PublicHistory returns a room's messages ascending by timestamp.
func (l *MessageLog) PublicHistory(roomKey string) []wire.Message {
	l.mu.RLock()
	msgs := l.public[roomKey]
	l.mu.RUnlock()
	return sortedCopy(msgs)
}

// PrivateHistory returns the conversation between two users ascending by
// timestamp.
func (l *MessageLog) PrivateHistory(userA, userB string) []wire.Message {
	l.mu.RLock()
	msgs := l.private[pairKey(userA, userB)]
	l.mu.RUnlock()
	return sortedCopy(msgs)
}

func sortedCopy(msgs []wire.Message) []wire.Message {
	out := make([]wire.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

func pairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
