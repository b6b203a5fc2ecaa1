package domain

import (
	"time"
)

// Message is one entry of a conversation. IDs are sign-disjoint:
// the store sequence assigns positive ids on persistence, while a
// session-local counter hands out negative temporary ids for
// optimistic placeholders, so the two ranges can never collide.
type Message struct {
	ID             int64
	ConversationID string
	SenderID       string
	Body           string
	AttachmentURL  string
	CreatedAt      time.Time
	ReadAt         *time.Time

	// Pending marks a locally created message not yet confirmed by
	// the store. Never persisted.
	Pending bool
}

// Confirmed reports whether the store has assigned a durable id.
func (m Message) Confirmed() bool {
	return m.ID > 0 && !m.Pending
}

// Unread reports whether the message has not been read yet.
func (m Message) Unread() bool {
	return m.ReadAt == nil
}

// InboundFor reports whether the message was sent to userID rather
// than by them.
func (m Message) InboundFor(userID string) bool {
	return m.SenderID != userID
}

// MarkRead sets the read timestamp. The transition happens exactly
// once; later calls keep the original timestamp.
func (m *Message) MarkRead(at time.Time) {
	if m.ReadAt != nil {
		return
	}
	t := at
	m.ReadAt = &t
}
