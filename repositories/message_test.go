package repositories

import (
	"log/slog"
	"testing"

	"market-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Store_Multiple_Messages_Ascending(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)

	conversation := "conv-1"
	first, err := repository.StoreMessage(conversation, "alice", "hello", "")
	req.NoError(err)
	second, err := repository.StoreMessage(conversation, "bob", "hi", "")
	req.NoError(err)
	third, err := repository.StoreMessage(conversation, "alice", "how are you", "")
	req.NoError(err)

	req.Positive(first.ID)
	req.Positive(second.ID)
	req.Positive(third.ID)
	req.NotEqual(first.ID, second.ID)
	req.NotEqual(second.ID, third.ID)

	messages, err := repository.ListMessages(conversation)
	req.NoError(err)
	req.Len(messages, 3)
	for i := 1; i < len(messages); i++ {
		req.False(messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
	req.True(messages[0].Unread())
}

func Test_List_Messages_Limit_Keeps_Latest(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), lo.ToPtr(2))
	req.NoError(err)

	conversation := "conv-1"
	_, err = repository.StoreMessage(conversation, "alice", "first", "")
	req.NoError(err)
	_, err = repository.StoreMessage(conversation, "alice", "second", "")
	req.NoError(err)
	last, err := repository.StoreMessage(conversation, "alice", "third", "")
	req.NoError(err)

	messages, err := repository.ListMessages(conversation)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(last.ID, messages[1].ID)
	req.Equal("second", messages[0].Body)
}

func Test_Messages_Are_Scoped_By_Conversation(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)

	_, err = repository.StoreMessage("conv-1", "alice", "in one", "")
	req.NoError(err)
	_, err = repository.StoreMessage("conv-2", "alice", "in two", "")
	req.NoError(err)

	messages, err := repository.ListMessages("conv-1")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("in one", messages[0].Body)
}

func Test_MarkRead_Batches_And_Is_OneWay(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)

	conversation := "conv-1"
	_, err = repository.StoreMessage(conversation, "bob", "one", "")
	req.NoError(err)
	_, err = repository.StoreMessage(conversation, "bob", "two", "")
	req.NoError(err)
	_, err = repository.StoreMessage(conversation, "alice", "mine", "")
	req.NoError(err)

	// Alice opens the conversation: both of Bob's messages transition,
	// and only those come back.
	marked, err := repository.MarkRead(conversation, "alice")
	req.NoError(err)
	req.Len(marked, 2)
	for _, m := range marked {
		req.Equal("bob", m.SenderID)
		req.False(m.Unread())
	}

	messages, err := repository.ListMessages(conversation)
	req.NoError(err)
	firstReadAt := messages[0].ReadAt
	req.NotNil(firstReadAt)
	// Alice's own message stays untouched.
	req.True(messages[2].Unread())

	// A second pass is a no-op and never moves existing timestamps.
	marked, err = repository.MarkRead(conversation, "alice")
	req.NoError(err)
	req.Empty(marked)

	messages, err = repository.ListMessages(conversation)
	req.NoError(err)
	req.Equal(firstReadAt, messages[0].ReadAt)
}

func Test_Delete_Is_Scoped_To_Sender(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)

	conversation := "conv-1"
	message, err := repository.StoreMessage(conversation, "alice", "oops", "")
	req.NoError(err)

	// Bob cannot delete Alice's message.
	err = repository.DeleteMessage(conversation, "bob", message.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)

	err = repository.DeleteMessage(conversation, "alice", message.ID)
	req.NoError(err)

	_, err = repository.GetMessage(conversation, message.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)

	messages, err := repository.ListMessages(conversation)
	req.NoError(err)
	req.Empty(messages)
}

func Test_RecordKey_SameNanosecond_SortsByID(t *testing.T) {
	req := require.New(t)
	at := int64(1_700_000_000_000_000_000)

	// Without padding, "10" would sort before "2" lexicographically.
	req.Less(recordKey("conv-1", at, 2), recordKey("conv-1", at, 10))
	req.Less(recordKey("conv-1", at, 10), recordKey("conv-1", at+1, 2))
}

func Test_UnreadInbound(t *testing.T) {
	req := require.New(t)
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	req.NoError(err)

	conversation := "conv-1"
	_, err = repository.StoreMessage(conversation, "bob", "unread inbound", "")
	req.NoError(err)
	_, err = repository.StoreMessage(conversation, "alice", "own message", "")
	req.NoError(err)

	unread, err := repository.UnreadInbound(conversation, "alice")
	req.NoError(err)
	req.Len(unread, 1)
	req.Equal("bob", unread[0].SenderID)
}
