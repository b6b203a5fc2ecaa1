package runtime

import (
	"context"
	"log/slog"
	"testing"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/mocks"
	"market-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messages, err := repositories.NewMessageRepository(db, log, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = messages.Close() })
	conversations := repositories.NewConversationRepository(db)
	return NewGateway(log, messages, conversations, NewBroker(log))
}

// Each open of a long conversation must not replay the whole read
// history: only rows whose receipt just transitioned are echoed.
func TestGateway_MarkRead_EchoesOnlyTransitionedRows(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gateway := newTestGateway(t)
	conversation, err := gateway.CreateConversation(ctx, domain.Conversation{
		RequesterID: "alice",
		ProviderID:  "bob",
	})
	req.NoError(err)

	_, err = gateway.InsertMessage(ctx, conversation.ID, "bob", "one", "")
	req.NoError(err)
	_, err = gateway.InsertMessage(ctx, conversation.ID, "bob", "two", "")
	req.NoError(err)

	// First open: both receipts transition before the sink registers.
	marked, err := gateway.MarkRead(ctx, conversation.ID, "alice")
	req.NoError(err)
	req.Equal(2, marked)

	var updates []event.MessageUpdated
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.StreamEvent) error {
			if update, ok := e.(event.MessageUpdated); ok {
				updates = append(updates, update)
			}
			return nil
		}).
		AnyTimes()
	gateway.Subscribe(contract.SubscriptionFilter{ConversationID: conversation.ID}, sink)

	// Re-opening with nothing left unread echoes nothing.
	marked, err = gateway.MarkRead(ctx, conversation.ID, "alice")
	req.NoError(err)
	req.Zero(marked)
	req.Empty(updates)

	// A new inbound message transitions alone; its echo is the only one.
	fresh, err := gateway.InsertMessage(ctx, conversation.ID, "bob", "three", "")
	req.NoError(err)
	marked, err = gateway.MarkRead(ctx, conversation.ID, "alice")
	req.NoError(err)
	req.Equal(1, marked)
	req.Len(updates, 1)
	req.Equal(fresh.ID, updates[0].Message.ID)
	req.False(updates[0].Message.Unread())
}
