package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yaohuangguan/orion-chat/internal/mocks"
	"github.com/yaohuangguan/orion-chat/internal/session"
	"github.com/yaohuangguan/orion-chat/internal/wire"
)

func startedEngine(t *testing.T, ch *mocks.ChannelFake, history *mocks.HistoryAPIMock) *session.Engine {
	t.Helper()
	e, err := session.New(session.Config{
		SelfID:   "u1",
		SelfName: "Alpha",
		RoomKey:  "lobby",
		Channel:  ch,
		History:  history,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	e.Start()
	return e
}

func TestSwitchChannelLoadsHistory(t *testing.T) {
	ch := mocks.NewChannelFake()
	history := new(mocks.HistoryAPIMock)
	history.On("PublicHistory", mock.Anything, "lobby").Return([]wire.Message{
		{Text: "first", Timestamp: time.Unix(1, 0).UTC()},
		{Text: "second", Timestamp: time.Unix(2, 0).UTC()},
	}, nil)

	e := startedEngine(t, ch, history)
	e.SwitchChannel(context.Background(), session.PublicChannel())

	require.Eventually(t, func() bool {
		return len(e.VisibleMessages()) == 2
	}, time.Second, 5*time.Millisecond)

	visible := e.VisibleMessages()
	assert.Equal(t, "first", visible[0].Text)
	assert.Equal(t, "second", visible[1].Text)
	history.AssertExpectations(t)
}

func TestRapidSwitchDiscardsLateResponse(t *testing.T) {
	ch := mocks.NewChannelFake()
	history := new(mocks.HistoryAPIMock)

	// The private fetch stalls until released, so the later public switch
	// always completes first.
	release := make(chan struct{})
	history.On("PrivateHistory", mock.Anything, "u2").
		Run(func(mock.Arguments) { <-release }).
		Return([]wire.Message{
			{Text: "late private", Timestamp: time.Unix(1, 0).UTC(), AuthorUserID: "u2", Private: true},
		}, nil)
	history.On("PublicHistory", mock.Anything, "lobby").Return([]wire.Message{
		{Text: "public history", Timestamp: time.Unix(1, 0).UTC()},
	}, nil)

	e := startedEngine(t, ch, history)
	e.SwitchChannel(context.Background(), session.PrivateChannel("u2", "Beta"))
	e.SwitchChannel(context.Background(), session.PublicChannel())

	require.Eventually(t, func() bool {
		return len(e.VisibleMessages()) == 1
	}, time.Second, 5*time.Millisecond)
	close(release)

	// The abandoned private response must never surface.
	assert.Never(t, func() bool {
		for _, msg := range e.VisibleMessages() {
			if msg.Text == "late private" {
				return true
			}
		}
		return false
	}, 150*time.Millisecond, 10*time.Millisecond)

	visible := e.VisibleMessages()
	require.Len(t, visible, 1)
	assert.Equal(t, "public history", visible[0].Text)
}

func TestPrivateConversationFlow(t *testing.T) {
	ch := mocks.NewChannelFake()
	history := new(mocks.HistoryAPIMock)
	history.On("PrivateHistory", mock.Anything, "u2").Return([]wire.Message{
		{Text: "earlier", Timestamp: time.Unix(1, 0).UTC(), AuthorUserID: "u2", Private: true},
	}, nil)

	e := startedEngine(t, ch, history)
	e.SwitchChannel(context.Background(), session.PrivateChannel("u2", "Beta"))
	require.Eventually(t, func() bool {
		return len(e.VisibleMessages()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.SendPrivate("hello"))

	// Server echo of our own send, then a real reply from the peer.
	ch.Deliver(wire.EventPrivateMessage, map[string]any{
		"user":    map[string]any{"id": "u1", "displayName": "Alpha"},
		"message": "hello",
	})
	ch.Deliver(wire.EventPrivateMessage, map[string]any{
		"user":    map[string]any{"id": "u2", "displayName": "Beta"},
		"message": "hi back",
	})

	require.Eventually(t, func() bool {
		return len(e.VisibleMessages()) == 3
	}, time.Second, 5*time.Millisecond)

	visible := e.VisibleMessages()
	assert.Equal(t, "earlier", visible[0].Text)
	assert.Equal(t, "hello", visible[1].Text)
	assert.Equal(t, "hi back", visible[2].Text)
}

func TestLogoutEmitsAndCloses(t *testing.T) {
	ch := mocks.NewChannelFake()
	history := new(mocks.HistoryAPIMock)
	e := startedEngine(t, ch, history)

	require.NoError(t, e.Logout())
	assert.Contains(t, ch.EmittedNames(), wire.EventLogout)
	assert.False(t, e.Connected())
}

func TestOnUpdateFiresOnAcceptedMessage(t *testing.T) {
	ch := mocks.NewChannelFake()
	history := new(mocks.HistoryAPIMock)

	updates := make(chan struct{}, 16)
	e, err := session.New(session.Config{
		SelfID:   "u1",
		SelfName: "Alpha",
		Channel:  ch,
		History:  history,
		Logger:   zerolog.Nop(),
		OnUpdate: func() { updates <- struct{}{} },
	})
	require.NoError(t, err)
	e.Start()

	ch.Deliver(wire.EventMessageReceived, map[string]any{
		"user":    map[string]any{"id": "u2", "displayName": "Beta"},
		"message": "ping",
	})

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no update notification after accepted message")
	}
}
