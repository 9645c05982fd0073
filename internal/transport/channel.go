// Package transport defines the bidirectional event channel the chat
// session engine runs on, and a WebSocket implementation of it. The engine
// only ever sees the EventChannel interface, so tests substitute an
// in-memory fake.
package transport

import "encoding/json"

// Handler receives the raw payload of a subscribed event. Handlers run on
// the channel's delivery goroutine and must not block.
type Handler func(data json.RawMessage)

// EventChannel is the injected transport dependency: named-event
// subscribe/emit over one bidirectional connection. Reconnection policy,
// if any, belongs to the implementation; the engine only observes the
// passive Connected flag.
type EventChannel interface {
	// Subscribe registers a handler for a named event. Later
	// subscriptions for the same event replace earlier ones.
	Subscribe(event string, handler Handler)

	// Emit sends a named event with a JSON-marshalable payload. A nil
	// payload sends an empty body.
	Emit(event string, payload any) error

	// Connected reports whether the underlying connection is up.
	Connected() bool

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Envelope is the frame exchanged on the wire: an event name plus its raw
// payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
