package relay

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/yaohuangguan/orion-chat/internal/observability"
	"github.com/yaohuangguan/orion-chat/internal/transport"
	"github.com/yaohuangguan/orion-chat/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler exposes the relay over HTTP: the websocket event channel, the
// history API, and the user directory.
type Handler struct {
	hub *Hub
	log zerolog.Logger
}

// NewHandler builds a Handler around the hub.
func NewHandler(hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, log: logger.With().Str("component", "relay.http").Logger()}
}

// HandleWS upgrades the connection, registers the client and pumps its
// events until disconnect or logout.
func (h *Handler) HandleWS(c *gin.Context) {
	uid := c.Query("uid")
	name := c.Query("name")
	if uid == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uid and name are required"})
		return
	}

	ctx, span := otel.Tracer("orion-chat/relay").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	cl := &client{
		user: eventUser{
			ID:          uid,
			DisplayName: name,
			Email:       c.Query("email"),
			PhotoURL:    c.Query("photo"),
		},
		conn: conn,
		info: ConnInfo{
			ConnID:      uuid.NewString(),
			UserID:      uid,
			DeviceID:    observability.DeviceIDFromRequest(c.Request),
			IP:          observability.IPFromRequest(c.Request),
			RequestID:   observability.RequestIDFromRequest(c.Request),
			TraceID:     span.SpanContext().TraceID().String(),
			ConnectedAt: time.Now(),
		},
	}

	h.hub.Register(cl)
	h.readLoop(cl)
}

func (h *Handler) readLoop(cl *client) {
	var closeReason string
	defer func() {
		h.hub.Unregister(cl, closeReason)
		cl.conn.Close()
	}()

	for {
		_, frame, err := cl.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn().Err(err).Str("user_id", cl.user.ID).Msg("websocket read error")
			}
			return
		}

		var env transport.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			h.log.Debug().Err(err).Str("user_id", cl.user.ID).Msg("dropping unparseable frame")
			continue
		}

		switch env.Event {
		case wire.EventMessageSent:
			var send wire.PublicSend
			if err := json.Unmarshal(env.Data, &send); err == nil {
				h.hub.RelayPublic(cl, send.Text)
			}
		case wire.EventPrivateMessage:
			var send wire.PrivateSend
			if err := json.Unmarshal(env.Data, &send); err == nil {
				h.hub.RelayPrivate(cl, send)
			}
		case wire.EventTyping, wire.EventStopTyping:
			var signal wire.TypingSignal
			if err := json.Unmarshal(env.Data, &signal); err == nil {
				h.hub.ForwardTyping(env.Event, cl, signal)
			}
		case wire.EventLogout:
			closeReason = "logout"
			observability.IncRelayEvent(wire.EventLogout)
			return
		default:
			h.log.Debug().Str("event", env.Event).Msg("ignoring unknown event")
		}
	}
}

// GetPublicHistory returns a room's messages ascending by timestamp.
func (h *Handler) GetPublicHistory(c *gin.Context) {
	room := c.Param("room")
	c.JSON(http.StatusOK, gin.H{"messages": h.hub.Messages().PublicHistory(room)})
}

// GetPrivateHistory returns the 1:1 conversation between the requester
// and a peer.
func (h *Handler) GetPrivateHistory(c *gin.Context) {
	peer := c.Param("peer")
	self := c.Query("self")
	if self == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "self query parameter is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": h.hub.Messages().PrivateHistory(self, peer)})
}

// ListUsers serves the paginated user directory.
func (h *Handler) ListUsers(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if err != nil || size < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
		return
	}

	users := h.hub.KnownUsers()
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName != users[j].DisplayName {
			return users[i].DisplayName < users[j].DisplayName
		}
		return users[i].ID < users[j].ID
	})

	start := (page - 1) * size
	if start > len(users) {
		start = len(users)
	}
	end := start + size
	if end > len(users) {
		end = len(users)
	}

	c.JSON(http.StatusOK, gin.H{
		"users":    users[start:end],
		"has_more": end < len(users),
	})
}
