// Package relay implements the server side of the chat event contract:
// one public broadcast room plus private 1:1 routing, with presence
// snapshots, join announcements, typing forwarding, and the in-memory
// message log behind the history API. Private sends are delivered to the
// recipient and relayed back to their own sender; the echo carries no
// receiver field, matching what chat clients are built to suppress.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yaohuangguan/orion-chat/internal/observability"
	"github.com/yaohuangguan/orion-chat/internal/rabbitmq"
	"github.com/yaohuangguan/orion-chat/internal/telemetry"
	"github.com/yaohuangguan/orion-chat/internal/transport"
	"github.com/yaohuangguan/orion-chat/internal/wire"
)

// eventUser is the nested sender identity attached to relayed messages.
type eventUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// messagePayload is the loose wire shape of relayed messages. Receiver
// fields are intentionally absent from deliveries; clients resolve
// addressing from their own send state.
type messagePayload struct {
	User      eventUser `json:"user"`
	Message   string    `json:"message"`
	Timestamp string    `json:"timestamp"`
}

type client struct {
	user    eventUser
	conn    *websocket.Conn
	info    ConnInfo
	writeMu sync.Mutex
}

func (c *client) send(env transport.Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Hub maintains the set of connected clients and routes every event.
type Hub struct {
	roomKey string
	log     zerolog.Logger
	msgs    *MessageLog
	bus     rabbitmq.Publisher
	audit   *telemetry.AuditEmitter

	mu      sync.RWMutex
	clients map[string]*client
	seen    map[string]eventUser
}

// NewHub creates a hub for one public room. bus and audit may be noop.
func NewHub(roomKey string, msgs *MessageLog, bus rabbitmq.Publisher, audit *telemetry.AuditEmitter, logger zerolog.Logger) *Hub {
	return &Hub{
		roomKey: roomKey,
		log:     logger.With().Str("component", "relay").Logger(),
		msgs:    msgs,
		bus:     bus,
		audit:   audit,
		clients: make(map[string]*client),
		seen:    make(map[string]eventUser),
	}
}

// Messages exposes the in-memory log for the history handlers.
func (h *Hub) Messages() *MessageLog {
	return h.msgs
}

// Register adds a connection, pushes a fresh presence snapshot to everyone
// and announces the join.
func (h *Hub) Register(cl *client) {
	h.mu.Lock()
	h.clients[cl.user.ID] = cl
	h.seen[cl.user.ID] = cl.user
	h.mu.Unlock()

	observability.IncWSActive()
	observability.IncRelayEvent(wire.EventUserConnected)
	h.broadcast(wire.EventUserConnected, h.snapshot())
	h.broadcast(wire.EventRoomWelcome, map[string]any{
		"user":    cl.user,
		"message": cl.user.DisplayName + " joined the room",
	})
	h.audit.Emit(context.Background(), cl.user.ID, "join", "public", "")
	h.publishConnEvent(cl.info, "ws_connect", "")
}

// Unregister removes a connection and pushes the shrunken snapshot.
func (h *Hub) Unregister(cl *client, reason string) {
	h.mu.Lock()
	current, ok := h.clients[cl.user.ID]
	if ok && current == cl {
		delete(h.clients, cl.user.ID)
	}
	h.mu.Unlock()
	if !ok || current != cl {
		return
	}

	observability.DecWSActive()
	h.broadcast(wire.EventUserConnected, h.snapshot())
	h.audit.Emit(context.Background(), cl.user.ID, "leave", "public", reason)
	h.publishConnEvent(cl.info, "ws_disconnect", reason)
}

// RelayPublic stores a public send and broadcasts it to every client,
// sender included.
func (h *Hub) RelayPublic(from *client, text string) {
	if text == "" {
		return
	}
	observability.IncRelayEvent(wire.EventMessageSent)

	now := time.Now().UTC()
	h.msgs.AppendPublic(h.roomKey, wire.Message{
		ID:             uuid.NewString(),
		Text:           text,
		Timestamp:      now,
		AuthorName:     from.user.DisplayName,
		AuthorUserID:   from.user.ID,
		AuthorEmail:    from.user.Email,
		AuthorPhotoURL: from.user.PhotoURL,
	})

	h.broadcast(wire.EventMessageReceived, messagePayload{
		User:      from.user,
		Message:   text,
		Timestamp: now.Format(time.RFC3339Nano),
	})
	h.audit.Emit(context.Background(), from.user.ID, "message", "public", "")
}

// RelayPrivate stores a private send, delivers it to the recipient when
// online, and relays a receiverless copy back to the sender.
func (h *Hub) RelayPrivate(from *client, send wire.PrivateSend) {
	if send.Text == "" || send.ToUserID == "" {
		return
	}
	observability.IncRelayEvent(wire.EventPrivateMessage)

	now := time.Now().UTC()
	h.msgs.AppendPrivate(from.user.ID, send.ToUserID, wire.Message{
		ID:             uuid.NewString(),
		Text:           send.Text,
		Timestamp:      now,
		AuthorName:     from.user.DisplayName,
		AuthorUserID:   from.user.ID,
		AuthorEmail:    from.user.Email,
		AuthorPhotoURL: from.user.PhotoURL,
		Private:        true,
		ReceiverID:     send.ToUserID,
	})

	payload := messagePayload{
		User:      from.user,
		Message:   send.Text,
		Timestamp: now.Format(time.RFC3339Nano),
	}
	h.sendTo(send.ToUserID, wire.EventPrivateMessage, payload)
	h.sendTo(from.user.ID, wire.EventPrivateMessage, payload)
	h.audit.Emit(context.Background(), from.user.ID, "message", "private", "")
}

// ForwardTyping relays a typing signal to everyone but its origin.
func (h *Hub) ForwardTyping(event string, from *client, signal wire.TypingSignal) {
	observability.IncRelayEvent(event)
	signal.UserName = from.user.DisplayName

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for id, cl := range h.clients {
		if id != from.user.ID {
			targets = append(targets, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		h.deliver(cl, event, signal)
	}
}

// KnownUsers lists every user the relay has ever seen, for the directory
// endpoint.
func (h *Hub) KnownUsers() []eventUser {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]eventUser, 0, len(h.seen))
	for _, u := range h.seen {
		out = append(out, u)
	}
	return out
}

func (h *Hub) snapshot() wire.PresenceSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := make(wire.PresenceSnapshot, len(h.clients))
	for id, cl := range h.clients {
		snap[id] = wire.PresenceUser{
			DisplayName: cl.user.DisplayName,
			Email:       cl.user.Email,
			PhotoURL:    cl.user.PhotoURL,
		}
	}
	return snap
}

func (h *Hub) broadcast(event string, payload any) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		h.deliver(cl, event, payload)
	}
}

func (h *Hub) sendTo(userID, event string, payload any) {
	h.mu.RLock()
	cl := h.clients[userID]
	h.mu.RUnlock()
	if cl != nil {
		h.deliver(cl, event, payload)
	}
}

func (h *Hub) deliver(cl *client, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal delivery payload")
		return
	}
	if err := cl.send(transport.Envelope{Event: event, Data: data}); err != nil {
		h.log.Warn().Err(err).Str("user_id", cl.user.ID).Msg("websocket write error")
		cl.conn.Close()
		h.Unregister(cl, err.Error())
		h.publishConnEvent(cl.info, "ws_error", err.Error())
	}
}

func (h *Hub) publishConnEvent(info ConnInfo, event, reason string) {
	if h.bus == nil {
		return
	}
	payload := map[string]any{
		"ws": map[string]any{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = h.bus.Publish(context.Background(), "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
