package wire

import "time"

// Message is the canonical chat message record. All inbound payloads are
// mapped onto this shape by Normalize before anything else sees them; a
// Message is never mutated after construction.
type Message struct {
	ID             string    `json:"id,omitempty"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	AuthorName     string    `json:"author_name"`
	AuthorUserID   string    `json:"author_user_id,omitempty"`
	AuthorEmail    string    `json:"author_email,omitempty"`
	AuthorPhotoURL string    `json:"author_photo_url,omitempty"`
	Private        bool      `json:"private"`
	ReceiverID     string    `json:"receiver_id,omitempty"`
	System         bool      `json:"system,omitempty"`
}

// Before reports whether m orders strictly before other by timestamp.
// Equal timestamps are not ordered here; callers rely on stable sorting to
// preserve insertion order for ties.
func (m Message) Before(other Message) bool {
	return m.Timestamp.Before(other.Timestamp)
}
