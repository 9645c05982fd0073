// Package session implements the client-side chat session: the shared
// message log, per-channel visibility filtering, optimistic sends with
// echo suppression, and history loading with a stale-selection guard.
package session

// Channel selects the active conversation: the single public broadcast
// room or one private 1:1 conversation keyed by peer id. It is a value
// selector, not a stored entity; exactly one channel is active at a time.
type Channel struct {
	private  bool
	peerID   string
	peerName string
}

// PublicChannel selects the public broadcast room.
func PublicChannel() Channel {
	return Channel{}
}

// PrivateChannel selects the 1:1 conversation with the given peer. The
// peer name is kept for legacy receiver matching (older messages address
// receivers by display name instead of id).
func PrivateChannel(peerID, peerName string) Channel {
	return Channel{private: true, peerID: peerID, peerName: peerName}
}

// IsPrivate reports whether this selects a 1:1 conversation.
func (c Channel) IsPrivate() bool { return c.private }

// PeerID returns the private peer's id, empty for the public channel.
func (c Channel) PeerID() string { return c.peerID }

// PeerName returns the private peer's display name, empty for public.
func (c Channel) PeerName() string { return c.peerName }

// Key is the channel identifier used in typing signals.
func (c Channel) Key() string {
	if c.private {
		return "private:" + c.peerID
	}
	return "public"
}
