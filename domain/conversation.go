// Package domain contains core concepts of the messaging engine.
// Conversations and messages are plain values; all coordination
// lives in the session and runtime packages.
package domain

import (
	"time"
)

// Conversation is a persistent thread between a requester and a
// provider about one subject. Immutable after creation.
type Conversation struct {
	ID          string
	RequesterID string
	ProviderID  string
	SubjectID   string
	CreatedAt   time.Time
}

// HasParticipant reports whether userID owns one side of the thread.
func (c Conversation) HasParticipant(userID string) bool {
	return c.RequesterID == userID || c.ProviderID == userID
}

// Peer returns the other participant of the conversation.
func (c Conversation) Peer(userID string) string {
	if c.RequesterID == userID {
		return c.ProviderID
	}
	return c.RequesterID
}
