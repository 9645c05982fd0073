package session

import (
	"sort"

	"github.com/yaohuangguan/orion-chat/internal/wire"
)

// Visible computes the subset of the shared log shown for the active
// channel. Stateless: re-evaluated on every call, never mutates the log.
//
// Public shows every non-private message, system announcements included.
// A private channel shows private messages exchanged with that peer only:
// inbound ones authored by the peer, and outbound ones authored by self
// whose receiver matches the peer by id or, for legacy messages, by
// display name. Self-authored messages targeting a third party stay
// hidden even though the author matches; private contexts share one log
// and must not leak into each other.
//
// The result is ordered ascending by timestamp with log order as a stable
// tiebreak.
func Visible(log []wire.Message, active Channel, selfID string) []wire.Message {
	out := make([]wire.Message, 0, len(log))
	for _, msg := range log {
		if matches(msg, active, selfID) {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

func matches(msg wire.Message, active Channel, selfID string) bool {
	if !active.IsPrivate() {
		return !msg.Private
	}
	if !msg.Private {
		return false
	}
	if msg.AuthorUserID == active.PeerID() {
		return true
	}
	if msg.AuthorUserID != selfID {
		return false
	}
	return msg.ReceiverID == active.PeerID() || msg.ReceiverID == active.PeerName()
}
