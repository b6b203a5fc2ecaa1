package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"market-chat/domain"
	"market-chat/notify"
	"market-chat/repositories"
	"market-chat/runtime"
	"market-chat/session"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type Config struct {
	// INTEGRATION_DEBUG turns on debug logging for the scenario run
	Debug bool `envconfig:"INTEGRATION_DEBUG" default:"false"`
}

func loadConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))
	return cfg
}

type participant struct {
	session *session.Session
	alerts  []notify.Alert
}

// Test_Conversation_Between_Two_Sessions runs the whole engine against
// a real badger store: optimistic send, live delivery, read receipts
// crossing sessions, and optimistic deletion.
func Test_Conversation_Between_Two_Sessions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	cfg := loadConfig(t)

	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	if cfg.Debug {
		log = logs.GetLoggerFromLevel(slog.LevelDebug)
	}

	// Reduced to 16 Mo for testing
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	messages, err := repositories.NewMessageRepository(db, log, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = messages.Close() })
	conversations := repositories.NewConversationRepository(db)
	gateway := runtime.NewGateway(log, messages, conversations, runtime.NewBroker(log))

	newParticipant := func(userID string) *participant {
		p := &participant{}
		center := notify.NewCenter(log, time.Minute, func(a notify.Alert) {
			p.alerts = append(p.alerts, a)
		})
		p.session = session.New(log, gateway, nil, center, userID)
		t.Cleanup(p.session.Close)
		return p
	}

	alice := newParticipant("alice")
	bob := newParticipant("bob")

	conversation, err := gateway.CreateConversation(ctx, domain.Conversation{
		RequesterID: "alice",
		ProviderID:  "bob",
		SubjectID:   "service-42",
	})
	req.NoError(err)

	req.NoError(alice.session.OpenBackgroundWatch(ctx))
	req.NoError(bob.session.OpenBackgroundWatch(ctx))

	// Alice opens the thread and sends; Bob only has the background
	// watch, so he gets an alert and an unread tick.
	req.NoError(alice.session.SelectConversation(ctx, conversation.ID))
	req.NoError(alice.session.Send(ctx, "hi bob", nil))

	req.Equal(1, bob.session.UnreadCount())
	req.Len(bob.alerts, 1)
	req.Equal(conversation.ID, bob.alerts[0].ConversationID)
	req.Zero(alice.session.UnreadCount())

	sent := alice.session.OrderedMessages()
	req.Len(sent, 1)
	req.True(sent[0].Confirmed())
	req.True(sent[0].Unread())

	// Bob opens the thread: his counter drains and the read receipt
	// travels back into Alice's open timeline as an update event.
	req.NoError(bob.session.SelectConversation(ctx, conversation.ID))
	req.Zero(bob.session.UnreadCount())

	seenByAlice := alice.session.OrderedMessages()
	req.Len(seenByAlice, 1)
	req.False(seenByAlice[0].Unread())

	// Bob replies; Alice has the thread open, so it lands in her
	// timeline live without touching her unread counter.
	req.NoError(bob.session.Send(ctx, "hello alice", nil))
	req.Len(alice.session.OrderedMessages(), 2)
	req.Zero(alice.session.UnreadCount())
	req.Empty(alice.alerts)

	alice.session.MarkActiveConversationRead(ctx)
	stored, err := gateway.ListMessages(ctx, conversation.ID)
	req.NoError(err)
	req.Len(stored, 2)
	for _, m := range stored {
		req.False(m.Unread())
	}

	// Alice deletes her message; Bob's open view drops it too.
	req.NoError(alice.session.DeleteMessage(ctx, sent[0].ID))
	req.Len(alice.session.OrderedMessages(), 1)
	req.Len(bob.session.OrderedMessages(), 1)
	req.Equal("hello alice", bob.session.OrderedMessages()[0].Body)
}
