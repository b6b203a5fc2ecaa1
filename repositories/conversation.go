//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"market-chat/domain"
	"market-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IConversationRepository interface {
	CreateConversation(conversation domain.Conversation) (domain.Conversation, error)
	GetConversation(id string) (domain.Conversation, error)
	ListConversations(userID string) ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// DiskConversation mirrors domain.Conversation on disk.
type DiskConversation struct {
	ID        string `cbor:"1,keyasint"`
	Requester string `cbor:"2,keyasint"`
	Provider  string `cbor:"3,keyasint"`
	Subject   string `cbor:"4,keyasint"`
	At        int64  `cbor:"5,keyasint"`
}

// CreateConversation persists a new thread under "conv:{id}" and one
// participant index entry "idx:user:{uid}:{id}" per side, so listing a
// user's conversations is a single prefix scan.
func (c *ConversationRepository) CreateConversation(conversation domain.Conversation) (domain.Conversation, error) {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}

	stored := DiskConversation{
		ID:        conversation.ID,
		Requester: conversation.RequesterID,
		Provider:  conversation.ProviderID,
		Subject:   conversation.SubjectID,
		At:        conversation.CreatedAt.UnixNano(),
	}
	bytes, err := cbor.Marshal(stored)
	if err != nil {
		return domain.Conversation{}, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("conv:"+stored.ID), bytes); err != nil {
			return err
		}
		for _, uid := range []string{stored.Requester, stored.Provider} {
			key := fmt.Sprintf("idx:user:%s:%s", uid, stored.ID)
			if err := txn.Set([]byte(key), []byte(stored.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(stored), nil
}

func (c *ConversationRepository) GetConversation(id string) (domain.Conversation, error) {
	var stored DiskConversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("conv:" + id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrConversationNotFound
			}
			return err
		}
		return item.Value(func(value []byte) error {
			return cbor.Unmarshal(value, &stored)
		})
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(stored), nil
}

// ListConversations returns every thread where the user is requester
// or provider.
func (c *ConversationRepository) ListConversations(userID string) ([]domain.Conversation, error) {
	var ids []string
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("idx:user:%s:", userID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conversation, err := c.GetConversation(id)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

func toConversation(stored DiskConversation) domain.Conversation {
	return domain.Conversation{
		ID:          stored.ID,
		RequesterID: stored.Requester,
		ProviderID:  stored.Provider,
		SubjectID:   stored.Subject,
		CreatedAt:   time.Unix(0, stored.At).UTC(),
	}
}
