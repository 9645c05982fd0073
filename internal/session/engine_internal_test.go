package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaohuangguan/orion-chat/internal/transport"
	"github.com/yaohuangguan/orion-chat/internal/wire"
)

type stubChannel struct {
	mu       sync.Mutex
	handlers map[string]transport.Handler
	emitted  []string
	payloads map[string][]any
}

func newStubChannel() *stubChannel {
	return &stubChannel{
		handlers: make(map[string]transport.Handler),
		payloads: make(map[string][]any),
	}
}

func (s *stubChannel) Subscribe(event string, handler transport.Handler) {
	s.mu.Lock()
	s.handlers[event] = handler
	s.mu.Unlock()
}

func (s *stubChannel) Emit(event string, payload any) error {
	s.mu.Lock()
	s.emitted = append(s.emitted, event)
	s.payloads[event] = append(s.payloads[event], payload)
	s.mu.Unlock()
	return nil
}

func (s *stubChannel) Connected() bool { return true }
func (s *stubChannel) Close() error    { return nil }

func (s *stubChannel) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	s.mu.Lock()
	handler := s.handlers[event]
	s.mu.Unlock()
	require.NotNil(t, handler, "no handler subscribed for %s", event)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	handler(data)
}

func (s *stubChannel) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.emitted))
	copy(out, s.emitted)
	return out
}

type stubHistory struct {
	public  func(ctx context.Context, roomKey string) ([]wire.Message, error)
	private func(ctx context.Context, peerID string) ([]wire.Message, error)
}

func (s stubHistory) PublicHistory(ctx context.Context, roomKey string) ([]wire.Message, error) {
	if s.public == nil {
		return nil, nil
	}
	return s.public(ctx, roomKey)
}

func (s stubHistory) PrivateHistory(ctx context.Context, peerID string) ([]wire.Message, error) {
	if s.private == nil {
		return nil, nil
	}
	return s.private(ctx, peerID)
}

func newTestEngine(t *testing.T, ch *stubChannel, hist HistoryAPI) *Engine {
	t.Helper()
	if hist == nil {
		hist = stubHistory{}
	}
	e, err := New(Config{
		SelfID:   "u1",
		SelfName: "Me",
		RoomKey:  "lobby",
		Channel:  ch,
		History:  hist,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	e.Start()
	return e
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{SelfID: "u1", Channel: newStubChannel()})
	assert.Error(t, err)

	_, err = New(Config{SelfID: "u1", History: stubHistory{}})
	assert.Error(t, err)

	_, err = New(Config{Channel: newStubChannel(), History: stubHistory{}})
	assert.Error(t, err)
}

func TestPrivateSendRendersExactlyOnceDespiteEcho(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)
	e.beginSwitch(PrivateChannel("u2", "Beta"))

	require.NoError(t, e.SendPrivate("hello"))

	// The relay echoes the send back with the sender's identity and no
	// receiver field.
	ch.deliver(t, wire.EventPrivateMessage, map[string]any{
		"user":    map[string]any{"id": "u1", "displayName": "Me"},
		"message": "hello",
	})

	visible := e.VisibleMessages()
	require.Len(t, visible, 1)
	assert.Equal(t, "hello", visible[0].Text)
	assert.Equal(t, "u1", visible[0].AuthorUserID)
}

func TestPrivateSendEmitsOutboundEvent(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)
	e.beginSwitch(PrivateChannel("u2", "Beta"))

	require.NoError(t, e.SendPrivate("hello"))

	assert.Contains(t, ch.events(), wire.EventPrivateMessage)
	sends := ch.payloads[wire.EventPrivateMessage]
	require.Len(t, sends, 1)
	assert.Equal(t, wire.PrivateSend{Text: "hello", ToUserID: "u2", ToName: "Beta"}, sends[0])
}

func TestPrivateSendRejectedOnPublicChannel(t *testing.T) {
	e := newTestEngine(t, newStubChannel(), nil)
	assert.ErrorIs(t, e.SendPrivate("hello"), ErrNotPrivateChannel)
}

func TestEmptySendsRejected(t *testing.T) {
	e := newTestEngine(t, newStubChannel(), nil)
	assert.ErrorIs(t, e.SendPublic(""), ErrEmptyMessage)
	assert.ErrorIs(t, e.SendPrivate(""), ErrEmptyMessage)
}

func TestInboundPrivateFromPeerAccepted(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)
	e.beginSwitch(PrivateChannel("u2", "Beta"))

	ch.deliver(t, wire.EventPrivateMessage, map[string]any{
		"user":    map[string]any{"id": "u2", "displayName": "Beta"},
		"message": "hey you",
	})

	visible := e.VisibleMessages()
	require.Len(t, visible, 1)
	assert.Equal(t, "hey you", visible[0].Text)
}

func TestPublicSendHasNoOptimisticAppend(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)

	require.NoError(t, e.SendPublic("hi all"))
	assert.Empty(t, e.VisibleMessages())
	assert.Contains(t, ch.events(), wire.EventMessageSent)

	// Display relies on the broadcast echo, which carries full identity.
	ch.deliver(t, wire.EventMessageReceived, map[string]any{
		"user":    map[string]any{"id": "u1", "displayName": "Me"},
		"message": "hi all",
	})
	require.Len(t, e.VisibleMessages(), 1)
}

func TestStaleHistoryResponseDiscarded(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)

	privToken := e.beginSwitch(PrivateChannel("u2", "Beta"))
	pubToken := e.beginSwitch(PublicChannel())

	// Public history lands first, then the private response from the
	// abandoned selection arrives late.
	e.applyHistory(pubToken, PublicChannel(), nil, nil)
	e.applyHistory(privToken, PrivateChannel("u2", "Beta"), []wire.Message{
		{Text: "stale secret", Timestamp: at(1), AuthorUserID: "u2", Private: true},
	}, nil)

	assert.Empty(t, e.VisibleMessages())
	assert.Zero(t, e.store.Len())
}

func TestCurrentHistoryResponseApplied(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)

	token := e.beginSwitch(PrivateChannel("u2", "Beta"))
	e.applyHistory(token, PrivateChannel("u2", "Beta"), []wire.Message{
		{Text: "old", Timestamp: at(1), AuthorUserID: "u2", Private: true},
		{Text: "older", Timestamp: at(0), AuthorUserID: "u2", Private: true},
	}, nil)

	visible := e.VisibleMessages()
	require.Len(t, visible, 2)
	assert.Equal(t, "older", visible[0].Text)
	assert.Equal(t, "old", visible[1].Text)
}

func TestHistoryFailureLeavesChannelEmpty(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)
	e.accept(wire.Message{Text: "before", Timestamp: at(1)})

	token := e.beginSwitch(PublicChannel())
	e.applyHistory(token, PublicChannel(), nil, errors.New("api down"))

	assert.Empty(t, e.VisibleMessages())
}

func TestSwitchClearsVisibleLogImmediately(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)
	e.accept(wire.Message{Text: "before", Timestamp: at(1)})

	e.beginSwitch(PrivateChannel("u2", "Beta"))
	assert.Zero(t, e.store.Len())
}

func TestWelcomeRendersAsSystemMessage(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)

	ch.deliver(t, wire.EventRoomWelcome, map[string]any{
		"user":    map[string]any{"id": "u2", "displayName": "Beta"},
		"message": "Beta joined the room",
	})

	visible := e.VisibleMessages()
	require.Len(t, visible, 1)
	assert.True(t, visible[0].System)
}

func TestMalformedInboundEventDropped(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)

	ch.deliver(t, wire.EventMessageReceived, map[string]any{
		"user": map[string]any{"id": "u2", "displayName": "Beta"},
	})

	assert.Empty(t, e.VisibleMessages())
}

func TestTypingSignalsCarryActiveChannelKey(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)
	e.beginSwitch(PrivateChannel("u2", "Beta"))

	e.Keystroke()

	signals := ch.payloads[wire.EventTyping]
	require.Len(t, signals, 1)
	assert.Equal(t, "private:u2", signals[0].(wire.TypingSignal).ChannelKey)

	require.NoError(t, e.SendPrivate("done"))
	stops := ch.payloads[wire.EventStopTyping]
	require.Len(t, stops, 1)
}

func TestRemoteTypingRoster(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)

	ch.deliver(t, wire.EventTyping, wire.TypingSignal{ChannelKey: "public", UserName: "Beta", IsTyping: true})
	assert.Equal(t, []string{"Beta"}, e.TypingUsers())

	// The engine's own signals coming back are not remote typing.
	ch.deliver(t, wire.EventTyping, wire.TypingSignal{ChannelKey: "public", UserName: "Me", IsTyping: true})
	assert.Equal(t, []string{"Beta"}, e.TypingUsers())

	ch.deliver(t, wire.EventStopTyping, wire.TypingSignal{ChannelKey: "public", UserName: "Beta"})
	assert.Empty(t, e.TypingUsers())
}

func TestPresenceSnapshotReplaces(t *testing.T) {
	ch := newStubChannel()
	e := newTestEngine(t, ch, nil)

	ch.deliver(t, wire.EventUserConnected, wire.PresenceSnapshot{
		"u2": {DisplayName: "Beta"},
		"u3": {DisplayName: "Gamma"},
	})
	assert.True(t, e.IsOnline("u2"))
	assert.True(t, e.IsOnline("u3"))

	ch.deliver(t, wire.EventUserConnected, wire.PresenceSnapshot{
		"u3": {DisplayName: "Gamma"},
	})
	assert.False(t, e.IsOnline("u2"))
	assert.True(t, e.IsOnline("u3"))
}
