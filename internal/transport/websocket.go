package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketChannel implements EventChannel over a single gorilla/websocket
// connection with JSON envelopes. Writes are serialized with a mutex;
// inbound envelopes are dispatched from one reader goroutine.
type WebSocketChannel struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	handlerMu sync.RWMutex
	handlers  map[string]Handler
	connected atomic.Bool
	closeOnce sync.Once
	log       zerolog.Logger
}

// Dial connects to a relay WebSocket endpoint and starts the read loop.
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*WebSocketChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial event channel: %w", err)
	}

	ch := &WebSocketChannel{
		conn:     conn,
		handlers: make(map[string]Handler),
		log:      logger.With().Str("component", "transport").Logger(),
	}
	ch.connected.Store(true)
	go ch.readLoop()
	return ch, nil
}

// Subscribe registers the handler for an event name.
func (ch *WebSocketChannel) Subscribe(event string, handler Handler) {
	ch.handlerMu.Lock()
	ch.handlers[event] = handler
	ch.handlerMu.Unlock()
}

// Emit marshals the payload and writes an envelope frame.
func (ch *WebSocketChannel) Emit(event string, payload any) error {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if err := ch.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Connected reports the passive connection status.
func (ch *WebSocketChannel) Connected() bool {
	return ch.connected.Load()
}

// Close shuts the connection down and stops the read loop.
func (ch *WebSocketChannel) Close() error {
	var err error
	ch.closeOnce.Do(func() {
		ch.connected.Store(false)
		err = ch.conn.Close()
	})
	return err
}

func (ch *WebSocketChannel) readLoop() {
	defer func() {
		ch.connected.Store(false)
		ch.conn.Close()
	}()
	for {
		_, frame, err := ch.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ch.log.Warn().Err(err).Msg("event channel closed unexpectedly")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			ch.log.Debug().Err(err).Msg("dropping unparseable frame")
			continue
		}

		ch.handlerMu.RLock()
		handler := ch.handlers[env.Event]
		ch.handlerMu.RUnlock()
		if handler != nil {
			handler(env.Data)
		}
	}
}
