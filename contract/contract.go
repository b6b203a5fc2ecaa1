//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"market-chat/domain"
	"market-chat/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Panics and restarts are the supervisor's problem.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives stream events from the gateway broker.
// Consumers must tolerate duplicates and out-of-order delivery.
type EventSink interface {
	Consume(ctx context.Context, e event.StreamEvent) error
}

// SubscriptionFilter selects which events a subscription receives.
// Exactly one of ConversationID or UserID is set. InsertOnly drops
// update and delete events, which background watches don't need.
type SubscriptionFilter struct {
	ConversationID string
	UserID         string
	InsertOnly     bool
}

// Gateway is the narrow persistence surface the messaging engine
// consumes. The store's own protocol is out of scope here.
type Gateway interface {
	CreateConversation(ctx context.Context, conversation domain.Conversation) (domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	UnreadMessages(ctx context.Context, conversationID, userID string) ([]domain.Message, error)
	GetMessage(ctx context.Context, conversationID string, messageID int64) (domain.Message, error)
	InsertMessage(ctx context.Context, conversationID, senderID, body, attachmentURL string) (domain.Message, error)
	DeleteMessage(ctx context.Context, conversationID, senderID string, messageID int64) error
	// MarkRead bulk-marks unread messages of the conversation not sent
	// by excludingSenderID. Returns how many rows transitioned.
	MarkRead(ctx context.Context, conversationID, excludingSenderID string) (int, error)
	Subscribe(filter SubscriptionFilter, sink EventSink) uuid.UUID
	Unsubscribe(handle uuid.UUID)
}

// Uploader is the external object storage hosting attachments.
type Uploader interface {
	Upload(ctx context.Context, ownerID, conversationID string, file domain.Attachment) (string, error)
}

// Dispatcher delivers out-of-band notifications. Best effort: a
// failed dispatch is logged by the caller and never retried.
type Dispatcher interface {
	SendStaleUnreadAlert(ctx context.Context, message domain.Message, recipientID string) error
}
