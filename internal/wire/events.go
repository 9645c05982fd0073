package wire

// Event names exchanged over the event channel. Directions follow the
// backend contract: the server relays private sends back to their own
// sender (echo) in addition to the recipient.
const (
	EventUserConnected   = "user-connected"   // server->client, presence snapshot
	EventMessageSent     = "message-sent"     // client->server, public send
	EventMessageReceived = "message-received" // server->client, public message
	EventPrivateMessage  = "private-message"  // both directions
	EventTyping          = "typing"           // both directions
	EventStopTyping      = "stop-typing"      // both directions
	EventRoomWelcome     = "room-welcome"     // server->client, join announcement
	EventLogout          = "logout"           // client->server, no payload
)

// PublicSend is the outbound payload for message-sent.
type PublicSend struct {
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// PrivateSend is the outbound payload for private-message. The inbound
// shape of the same event frequently omits the receiver fields.
type PrivateSend struct {
	Text     string `json:"text"`
	ToUserID string `json:"toUserId"`
	ToName   string `json:"toName"`
}

// TypingSignal is the payload for typing and stop-typing.
type TypingSignal struct {
	ChannelKey string `json:"channelKey"`
	UserName   string `json:"userName,omitempty"`
	IsTyping   bool   `json:"isTyping,omitempty"`
}

// PresenceUser is one entry of a user-connected snapshot.
type PresenceUser struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// PresenceSnapshot maps user id to identity for every currently connected
// user. Each snapshot replaces the previous one wholesale.
type PresenceSnapshot map[string]PresenceUser
