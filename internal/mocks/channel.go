package mocks

import (
	"encoding/json"
	"sync"

	"github.com/yaohuangguan/orion-chat/internal/transport"
)

// ChannelFake is an in-memory transport.EventChannel. Tests deliver
// inbound events with Deliver and inspect outbound traffic through
// Emitted; testify expectations fit poorly for event flow, so this is a
// plain recording fake.
type ChannelFake struct {
	mu       sync.Mutex
	handlers map[string]transport.Handler
	emitted  []EmittedEvent
	closed   bool
	EmitErr  error
}

// EmittedEvent is one outbound event captured by the fake.
type EmittedEvent struct {
	Event   string
	Payload any
}

// NewChannelFake creates a connected fake channel.
func NewChannelFake() *ChannelFake {
	return &ChannelFake{handlers: make(map[string]transport.Handler)}
}

func (f *ChannelFake) Subscribe(event string, handler transport.Handler) {
	f.mu.Lock()
	f.handlers[event] = handler
	f.mu.Unlock()
}

func (f *ChannelFake) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EmitErr != nil {
		return f.EmitErr
	}
	f.emitted = append(f.emitted, EmittedEvent{Event: event, Payload: payload})
	return nil
}

func (f *ChannelFake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *ChannelFake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Deliver synchronously invokes the subscribed handler with a payload,
// marshaling non-raw values to JSON first.
func (f *ChannelFake) Deliver(event string, payload any) {
	f.mu.Lock()
	handler := f.handlers[event]
	f.mu.Unlock()
	if handler == nil {
		return
	}

	raw, ok := payload.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(payload)
		if err != nil {
			panic("mocks: deliver payload: " + err.Error())
		}
		raw = data
	}
	handler(raw)
}

// Emitted returns a copy of the outbound events captured so far.
func (f *ChannelFake) Emitted() []EmittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EmittedEvent, len(f.emitted))
	copy(out, f.emitted)
	return out
}

// EmittedNames returns just the event names, in emit order.
func (f *ChannelFake) EmittedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.emitted))
	for i, e := range f.emitted {
		out[i] = e.Event
	}
	return out
}

var _ transport.EventChannel = (*ChannelFake)(nil)
