// Package event defines the stream events emitted by the store
// gateway. The three shapes form a closed variant set dispatched by
// type switch; consumers must tolerate duplicates and out-of-order
// arrival relative to history loads.
package event

import (
	"market-chat/domain"
)

type StreamEvent interface {
	ConversationID() string
}

type MessageInserted struct {
	Message domain.Message
}

func (e MessageInserted) ConversationID() string {
	return e.Message.ConversationID
}

type MessageUpdated struct {
	Message domain.Message
}

func (e MessageUpdated) ConversationID() string {
	return e.Message.ConversationID
}

type MessageDeleted struct {
	Conversation string
	MessageID    int64
}

func (e MessageDeleted) ConversationID() string {
	return e.Conversation
}
