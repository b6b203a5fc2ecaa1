package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/errors"
	"market-chat/repositories"

	"github.com/google/uuid"
)

// Gateway fronts the badger repositories and the broker behind the
// single surface the session consumes. Every successful mutation is
// echoed as a stream event, including the writer's own: optimistic
// reconciliation counts on receiving its own insert back.
type Gateway struct {
	log           *slog.Logger
	messages      repositories.IMessageRepository
	conversations repositories.IConversationRepository
	broker        *Broker
}

func NewGateway(log *slog.Logger, messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository, broker *Broker) *Gateway {
	return &Gateway{
		log:           log,
		messages:      messages,
		conversations: conversations,
		broker:        broker,
	}
}

func (g *Gateway) CreateConversation(_ context.Context, conversation domain.Conversation) (domain.Conversation, error) {
	return g.conversations.CreateConversation(conversation)
}

func (g *Gateway) GetConversation(_ context.Context, conversationID string) (domain.Conversation, error) {
	return g.conversations.GetConversation(conversationID)
}

func (g *Gateway) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	return g.conversations.ListConversations(userID)
}

func (g *Gateway) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	return g.messages.ListMessages(conversationID)
}

// UnreadMessages lists the messages still unread for userID in the
// conversation, oldest first.
func (g *Gateway) UnreadMessages(_ context.Context, conversationID, userID string) ([]domain.Message, error) {
	return g.messages.UnreadInbound(conversationID, userID)
}

func (g *Gateway) GetMessage(_ context.Context, conversationID string, messageID int64) (domain.Message, error) {
	return g.messages.GetMessage(conversationID, messageID)
}

func (g *Gateway) InsertMessage(ctx context.Context, conversationID, senderID, body, attachmentURL string) (domain.Message, error) {
	conversation, err := g.conversations.GetConversation(conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conversation.HasParticipant(senderID) {
		return domain.Message{}, errors.ErrConversationNotFound
	}

	message, err := g.messages.StoreMessage(conversationID, senderID, body, attachmentURL)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersist, err)
	}
	g.publish(ctx, event.MessageInserted{Message: message}, conversation)
	return message, nil
}

func (g *Gateway) DeleteMessage(ctx context.Context, conversationID, senderID string, messageID int64) error {
	if err := g.messages.DeleteMessage(conversationID, senderID, messageID); err != nil {
		return err
	}
	conversation, err := g.conversations.GetConversation(conversationID)
	if err != nil {
		return err
	}
	g.publish(ctx, event.MessageDeleted{Conversation: conversationID, MessageID: messageID}, conversation)
	return nil
}

// MarkRead bulk-updates receipts and echoes one update event for each
// row that just transitioned, and only those, so an open peer view
// sees the new read state without replaying the whole read history.
func (g *Gateway) MarkRead(ctx context.Context, conversationID, excludingSenderID string) (int, error) {
	marked, err := g.messages.MarkRead(conversationID, excludingSenderID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrReadReceipt, err)
	}
	if len(marked) == 0 {
		return 0, nil
	}

	conversation, err := g.conversations.GetConversation(conversationID)
	if err != nil {
		g.log.Warn("Read receipts stored but update events dropped", "conversation", conversationID, "error", err)
		return len(marked), nil
	}
	for _, message := range marked {
		g.publish(ctx, event.MessageUpdated{Message: message}, conversation)
	}
	return len(marked), nil
}

func (g *Gateway) Subscribe(filter contract.SubscriptionFilter, sink contract.EventSink) uuid.UUID {
	return g.broker.Subscribe(filter, sink)
}

func (g *Gateway) Unsubscribe(handle uuid.UUID) {
	g.broker.Unsubscribe(handle)
}

func (g *Gateway) publish(ctx context.Context, evt event.StreamEvent, conversation domain.Conversation) {
	g.broker.Publish(ctx, evt, []string{conversation.RequesterID, conversation.ProviderID})
}
