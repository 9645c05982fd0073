package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yaohuangguan/orion-chat/internal/observability"
	"github.com/yaohuangguan/orion-chat/internal/presence"
	"github.com/yaohuangguan/orion-chat/internal/transport"
	"github.com/yaohuangguan/orion-chat/internal/typing"
	"github.com/yaohuangguan/orion-chat/internal/wire"
)

// HistoryAPI is the external paginated-history service consumed on channel
// switches. Both calls return messages ascending by timestamp.
type HistoryAPI interface {
	PublicHistory(ctx context.Context, roomKey string) ([]wire.Message, error)
	PrivateHistory(ctx context.Context, peerID string) ([]wire.Message, error)
}

var (
	// ErrNotPrivateChannel is returned when a private send is attempted
	// while the public channel is active.
	ErrNotPrivateChannel = errors.New("active channel is not private")

	// ErrEmptyMessage is returned for sends with no text.
	ErrEmptyMessage = errors.New("message text is empty")
)

// Config carries the engine's identity and injected collaborators.
type Config struct {
	SelfID   string
	SelfName string
	RoomKey  string

	Channel transport.EventChannel
	History HistoryAPI

	// TypingIdle overrides the typing inactivity window; zero means the
	// 2 s default.
	TypingIdle time.Duration

	Logger zerolog.Logger

	// OnUpdate, when set, is invoked after every change to the visible
	// state (accepted message, history applied, channel switched).
	OnUpdate func()
}

// Engine is the message routing and synchronization core of one chat
// session. All inbound events pass through wire.Normalize, accepted
// messages land in the single shared Store, and rendering reads the
// per-channel Visible projection of that store.
//
// Transport callbacks and history completions arrive on foreign
// goroutines; the engine serializes every store and selection mutation
// behind one mutex.
type Engine struct {
	selfID   string
	selfName string
	roomKey  string
	channel  transport.EventChannel
	history  HistoryAPI
	log      zerolog.Logger
	onUpdate func()

	mu        sync.Mutex
	store     *Store
	active    Channel
	selection uint64

	typing   *typing.Controller
	remote   *typing.Roster
	presence *presence.Tracker
}

// New builds an engine for the given identity. The session starts on the
// public channel with an empty log; call Start to begin consuming events
// and SwitchChannel to load history.
func New(cfg Config) (*Engine, error) {
	if cfg.SelfID == "" {
		return nil, errors.New("session: self id is required")
	}
	if cfg.Channel == nil {
		return nil, errors.New("session: event channel is required")
	}
	if cfg.History == nil {
		return nil, errors.New("session: history api is required")
	}

	e := &Engine{
		selfID:   cfg.SelfID,
		selfName: cfg.SelfName,
		roomKey:  cfg.RoomKey,
		channel:  cfg.Channel,
		history:  cfg.History,
		log:      cfg.Logger.With().Str("component", "session").Logger(),
		onUpdate: cfg.OnUpdate,
		store:    NewStore(),
		active:   PublicChannel(),
		remote:   typing.NewRoster(),
		presence: presence.NewTracker(),
	}
	e.typing = typing.NewController(cfg.TypingIdle,
		func() { e.emitTyping(wire.EventTyping, true) },
		func() { e.emitTyping(wire.EventStopTyping, false) },
	)
	return e, nil
}

// Start subscribes the engine to the event channel. Call once.
func (e *Engine) Start() {
	e.channel.Subscribe(wire.EventUserConnected, e.handlePresence)
	e.channel.Subscribe(wire.EventMessageReceived, e.handlePublic)
	e.channel.Subscribe(wire.EventPrivateMessage, e.handlePrivate)
	e.channel.Subscribe(wire.EventTyping, e.handleTyping)
	e.channel.Subscribe(wire.EventStopTyping, e.handleStopTyping)
	e.channel.Subscribe(wire.EventRoomWelcome, e.handleWelcome)
}

// SwitchChannel makes the given channel active, clears the visible log and
// loads its history asynchronously. A response that completes after a
// further switch is discarded by the selection token guard rather than
// applied to the wrong channel.
func (e *Engine) SwitchChannel(ctx context.Context, ch Channel) {
	token := e.beginSwitch(ch)
	go func() {
		msgs, err := e.fetchHistory(ctx, ch)
		e.applyHistory(token, ch, msgs, err)
	}()
}

func (e *Engine) beginSwitch(ch Channel) uint64 {
	e.mu.Lock()
	e.active = ch
	e.selection++
	token := e.selection
	e.store.Clear()
	e.mu.Unlock()

	e.notify()
	return token
}

func (e *Engine) fetchHistory(ctx context.Context, ch Channel) ([]wire.Message, error) {
	start := time.Now()
	var (
		msgs []wire.Message
		err  error
		kind = "public"
	)
	if ch.IsPrivate() {
		kind = "private"
		msgs, err = e.history.PrivateHistory(ctx, ch.PeerID())
	} else {
		msgs, err = e.history.PublicHistory(ctx, e.roomKey)
	}
	observability.ObserveHistoryFetch(kind, time.Since(start).Seconds())
	return msgs, err
}

func (e *Engine) applyHistory(token uint64, ch Channel, msgs []wire.Message, err error) {
	e.mu.Lock()
	if token != e.selection {
		e.mu.Unlock()
		observability.IncStaleHistoryDrop()
		e.log.Debug().Str("channel", ch.Key()).Msg("discarding stale history response")
		return
	}
	if err != nil {
		e.mu.Unlock()
		// Terminal per attempt: the channel stays empty, nothing is
		// surfaced to the user and no retry is scheduled.
		e.log.Warn().Err(err).Str("channel", ch.Key()).Msg("history fetch failed")
		return
	}
	e.store.Replace(msgs)
	e.mu.Unlock()

	e.notify()
}

// SendPublic emits a public message. Display relies entirely on the
// server broadcast echo, which carries full sender identity; no optimistic
// append happens here.
func (e *Engine) SendPublic(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	e.typing.MessageSent()
	return e.channel.Emit(wire.EventMessageSent, wire.PublicSend{Text: text, Channel: "public"})
}

// SendPrivate appends a locally synthesized copy of the message before
// emitting it, so the sender sees it immediately. The server relays the
// send back to its own sender; that echo is suppressed in handlePrivate.
func (e *Engine) SendPrivate(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	active := e.active
	if !active.IsPrivate() {
		e.mu.Unlock()
		return ErrNotPrivateChannel
	}
	msg := wire.Message{
		ID:           uuid.NewString(),
		Text:         text,
		Timestamp:    time.Now().UTC(),
		AuthorName:   e.selfName,
		AuthorUserID: e.selfID,
		Private:      true,
		ReceiverID:   active.PeerID(),
	}
	e.store.Append(msg)
	e.mu.Unlock()

	e.typing.MessageSent()
	e.notify()

	return e.channel.Emit(wire.EventPrivateMessage, wire.PrivateSend{
		Text:     text,
		ToUserID: active.PeerID(),
		ToName:   active.PeerName(),
	})
}

// Keystroke feeds the local typing debounce state machine.
func (e *Engine) Keystroke() {
	e.typing.Keystroke()
}

// Logout announces the logout and closes the channel.
func (e *Engine) Logout() error {
	if err := e.channel.Emit(wire.EventLogout, nil); err != nil {
		e.log.Debug().Err(err).Msg("logout emit failed")
	}
	return e.channel.Close()
}

// VisibleMessages projects the shared log onto the active channel, sorted
// ascending by timestamp with insertion order breaking ties.
func (e *Engine) VisibleMessages() []wire.Message {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()
	return Visible(e.store.Snapshot(), active, e.selfID)
}

// ActiveChannel returns the current selection.
func (e *Engine) ActiveChannel() Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// TypingUsers lists remote users currently typing, sorted by name.
func (e *Engine) TypingUsers() []string {
	return e.remote.Names()
}

// IsOnline checks the peer against the most recent presence snapshot.
func (e *Engine) IsOnline(userID string) bool {
	return e.presence.IsOnline(userID)
}

// OnlineUsers lists the most recent presence snapshot sorted by name.
func (e *Engine) OnlineUsers() []presence.User {
	return e.presence.Users()
}

// Connected mirrors the transport's passive connection status.
func (e *Engine) Connected() bool {
	return e.channel.Connected()
}

func (e *Engine) handlePresence(data json.RawMessage) {
	observability.IncEngineEvent(wire.EventUserConnected)
	var snapshot wire.PresenceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		e.log.Debug().Err(err).Msg("dropping unreadable presence snapshot")
		return
	}
	e.presence.Apply(snapshot)
	e.notify()
}

func (e *Engine) handlePublic(data json.RawMessage) {
	observability.IncEngineEvent(wire.EventMessageReceived)
	msg, err := wire.Normalize(data, wire.KindPublic)
	if err != nil {
		observability.IncMalformedPayload()
		e.log.Debug().Err(err).Msg("dropping malformed public message")
		return
	}
	e.accept(msg)
}

func (e *Engine) handlePrivate(data json.RawMessage) {
	observability.IncEngineEvent(wire.EventPrivateMessage)
	msg, err := wire.Normalize(data, wire.KindPrivate)
	if err != nil {
		observability.IncMalformedPayload()
		e.log.Debug().Err(err).Msg("dropping malformed private message")
		return
	}

	// The relay echoes private sends back to their own sender, and the
	// echo carries no receiver field that could separate it from a real
	// inbound message. Self-authored inbound private messages are
	// therefore discarded unconditionally: the optimistic copy is
	// already in the log.
	if msg.AuthorUserID == e.selfID {
		observability.IncEchoSuppressed()
		e.log.Debug().Msg("suppressing echoed private send")
		return
	}
	e.accept(msg)
}

func (e *Engine) handleTyping(data json.RawMessage) {
	observability.IncEngineEvent(wire.EventTyping)
	var signal wire.TypingSignal
	if err := json.Unmarshal(data, &signal); err != nil || signal.UserName == e.selfName {
		return
	}
	e.remote.Add(signal.UserName)
	e.notify()
}

func (e *Engine) handleStopTyping(data json.RawMessage) {
	observability.IncEngineEvent(wire.EventStopTyping)
	var signal wire.TypingSignal
	if err := json.Unmarshal(data, &signal); err != nil {
		return
	}
	e.remote.Remove(signal.UserName)
	e.notify()
}

func (e *Engine) handleWelcome(data json.RawMessage) {
	observability.IncEngineEvent(wire.EventRoomWelcome)
	msg, err := wire.NormalizeSystem(data)
	if err != nil {
		observability.IncMalformedPayload()
		e.log.Debug().Err(err).Msg("dropping malformed welcome")
		return
	}
	e.accept(msg)
}

func (e *Engine) accept(msg wire.Message) {
	e.mu.Lock()
	e.store.Append(msg)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) emitTyping(event string, isTyping bool) {
	e.mu.Lock()
	key := e.active.Key()
	e.mu.Unlock()

	signal := wire.TypingSignal{ChannelKey: key, UserName: e.selfName, IsTyping: isTyping}
	if err := e.channel.Emit(event, signal); err != nil {
		e.log.Debug().Err(err).Str("event", event).Msg("typing emit failed")
	}
}

func (e *Engine) notify() {
	if e.onUpdate != nil {
		e.onUpdate()
	}
}
