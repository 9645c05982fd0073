package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind tags which channel an inbound event was received on.
type Kind int

const (
	KindPublic Kind = iota
	KindPrivate
)

// ErrMalformedPayload marks an inbound event that cannot become a Message.
// Text is the only required field; everything else degrades to fallbacks.
var ErrMalformedPayload = errors.New("malformed event payload")

// rawEvent is the superset of inbound payload shapes observed on the wire:
// sender identity nested under "user", flat author/userId pairs, or legacy
// bare fields. Never exposed outside this package.
type rawEvent struct {
	Text    string `json:"text"`
	Message string `json:"message"`

	User *struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
		PhotoURL    string `json:"photoUrl"`
	} `json:"user"`

	Author   string `json:"author"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoUrl"`

	Timestamp string `json:"timestamp"`
	ToUserID  string `json:"toUserId"`
	ToName    string `json:"toName"`
}

// Normalize maps a loose inbound event payload onto the canonical Message.
// Sender identity is resolved in priority order: nested user object, flat
// legacy fields, then an "Unknown" author. A payload without text is
// rejected with ErrMalformedPayload; a missing or unparseable timestamp
// falls back to the capture time.
func Normalize(raw json.RawMessage, kind Kind) (Message, error) {
	var ev rawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return normalize(ev, kind, false)
}

// NormalizeSystem maps a room-welcome payload to a system Message. The
// announcement text is required just like regular messages.
func NormalizeSystem(raw json.RawMessage) (Message, error) {
	var ev rawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return normalize(ev, KindPublic, true)
}

func normalize(ev rawEvent, kind Kind, system bool) (Message, error) {
	text := ev.Message
	if text == "" {
		text = ev.Text
	}
	if text == "" {
		return Message{}, fmt.Errorf("%w: missing text", ErrMalformedPayload)
	}

	msg := Message{
		Text:      text,
		Timestamp: parseTimestamp(ev.Timestamp),
		Private:   kind == KindPrivate,
		System:    system,
	}

	switch {
	case ev.User != nil && ev.User.DisplayName != "":
		msg.AuthorName = ev.User.DisplayName
		msg.AuthorUserID = ev.User.ID
		msg.AuthorEmail = ev.User.Email
		msg.AuthorPhotoURL = ev.User.PhotoURL
	case ev.Author != "":
		msg.AuthorName = ev.Author
		msg.AuthorUserID = ev.UserID
		msg.AuthorEmail = ev.Email
		msg.AuthorPhotoURL = ev.PhotoURL
	default:
		msg.AuthorName = "Unknown"
		if ev.User != nil {
			msg.AuthorUserID = ev.User.ID
		} else {
			msg.AuthorUserID = ev.UserID
		}
	}

	if msg.Private {
		msg.ReceiverID = ev.ToUserID
	}
	return msg, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}
