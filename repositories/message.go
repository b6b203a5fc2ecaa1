//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"market-chat/domain"
	"market-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(conversationID, senderID, body, attachmentURL string) (domain.Message, error)
	ListMessages(conversationID string) ([]domain.Message, error)
	UnreadInbound(conversationID, userID string) ([]domain.Message, error)
	GetMessage(conversationID string, messageID int64) (domain.Message, error)
	DeleteMessage(conversationID, senderID string, messageID int64) error
	MarkRead(conversationID, excludingSenderID string) ([]domain.Message, error)
	Close() error
}

type MessageRepository struct {
	db            *badger.DB
	seq           *badger.Sequence
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 128)
	if err != nil {
		return nil, fmt.Errorf("message id sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log, limitMessages: limitMessages}, nil
}

// Close releases the unused part of the id sequence lease.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// DiskMessage is the stored representation of a message. ReadAt uses
// 0 for unread so the CBOR payload stays compact.
type DiskMessage struct {
	ID            int64  `cbor:"1,keyasint"`
	Conversation  string `cbor:"2,keyasint"`
	Sender        string `cbor:"3,keyasint"`
	Body          string `cbor:"4,keyasint"`
	AttachmentURL string `cbor:"5,keyasint,omitempty"`
	At            int64  `cbor:"6,keyasint"`
	ReadAt        int64  `cbor:"7,keyasint,omitempty"`
}

// StoreMessage persists a message and assigns its durable id from the
// store sequence (ids start at 1, so confirmed ids are always positive).
// The record key is "msg:{conversation}:{timestamp_padded}:{id_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Keep the padded id as a tiebreaker so two messages landing on
//     the same nanosecond still sort by insertion order.
//
// A secondary key "idx:msg:{conversation}:{id_padded}" points back at
// the record key for by-id lookups and deletions.
func (m *MessageRepository) StoreMessage(conversationID, senderID, body, attachmentURL string) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, err
	}
	id := int64(next) + 1

	stored := DiskMessage{
		ID:            id,
		Conversation:  conversationID,
		Sender:        senderID,
		Body:          body,
		AttachmentURL: attachmentURL,
		At:            time.Now().UTC().UnixNano(),
	}
	bytes, err := cbor.Marshal(stored)
	if err != nil {
		return domain.Message{}, err
	}

	key := recordKey(conversationID, stored.At, id)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), bytes); err != nil {
			return err
		}
		return txn.Set([]byte(indexKey(conversationID, id)), []byte(key))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(stored), nil
}

// ListMessages returns the conversation history ascending by creation
// time. Thanks to the padded timestamp in the key, a forward prefix
// scan yields messages already sorted. When limitMessages is set, only
// the most recent N are returned (still ascending).
func (m *MessageRepository) ListMessages(conversationID string) ([]domain.Message, error) {
	var payloads [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				payloads = append(payloads, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.limitMessages != nil && len(payloads) > *m.limitMessages {
		m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
		payloads = payloads[len(payloads)-*m.limitMessages:]
	}

	messages := make([]domain.Message, 0, len(payloads))
	for _, b := range payloads {
		var stored DiskMessage
		if err = cbor.Unmarshal(b, &stored); err != nil {
			return nil, err
		}
		messages = append(messages, toMessage(stored))
	}
	return messages, nil
}

// GetMessage resolves a single message through the by-id index.
func (m *MessageRepository) GetMessage(conversationID string, messageID int64) (domain.Message, error) {
	var stored DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		record, err := resolveRecord(txn, conversationID, messageID)
		if err != nil {
			return err
		}
		return record.Value(func(value []byte) error {
			return cbor.Unmarshal(value, &stored)
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(stored), nil
}

// DeleteMessage removes a message scoped to (conversation, sender, id).
// A sender mismatch is reported as not found rather than leaking the
// row's existence.
func (m *MessageRepository) DeleteMessage(conversationID, senderID string, messageID int64) error {
	return m.db.Update(func(txn *badger.Txn) error {
		record, err := resolveRecord(txn, conversationID, messageID)
		if err != nil {
			return err
		}
		var stored DiskMessage
		if err = record.Value(func(value []byte) error {
			return cbor.Unmarshal(value, &stored)
		}); err != nil {
			return err
		}
		if stored.Sender != senderID {
			return errors.ErrMessageNotFound
		}
		if err = txn.Delete(record.KeyCopy(nil)); err != nil {
			return err
		}
		return txn.Delete([]byte(indexKey(conversationID, messageID)))
	})
}

// MarkRead stamps every unread message of the conversation not sent by
// excludingSenderID. One transaction for the whole batch; returns the
// rows that transitioned, ascending, so callers can act on exactly
// those. Already-read rows are never touched, so the nil -> timestamp
// transition happens at most once per message.
func (m *MessageRepository) MarkRead(conversationID, excludingSenderID string) ([]domain.Message, error) {
	var marked []domain.Message
	now := time.Now().UTC().UnixNano()
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var stored DiskMessage
			if err := item.Value(func(value []byte) error {
				return cbor.Unmarshal(value, &stored)
			}); err != nil {
				return err
			}
			if stored.ReadAt != 0 || stored.Sender == excludingSenderID {
				continue
			}
			stored.ReadAt = now
			bytes, err := cbor.Marshal(stored)
			if err != nil {
				return err
			}
			if err = txn.Set(item.KeyCopy(nil), bytes); err != nil {
				return err
			}
			marked = append(marked, toMessage(stored))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

// UnreadInbound returns the messages currently unread for userID in
// the conversation, oldest first. Used by the staleness scan.
func (m *MessageRepository) UnreadInbound(conversationID, userID string) ([]domain.Message, error) {
	messages, err := m.ListMessages(conversationID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(messages, func(msg domain.Message, _ int) bool {
		return msg.Unread() && msg.InboundFor(userID)
	}), nil
}

func resolveRecord(txn *badger.Txn, conversationID string, messageID int64) (*badger.Item, error) {
	index, err := txn.Get([]byte(indexKey(conversationID, messageID)))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.ErrMessageNotFound
		}
		return nil, err
	}
	recordKey, err := index.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	record, err := txn.Get(recordKey)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.ErrMessageNotFound
		}
		return nil, err
	}
	return record, nil
}

func recordKey(conversationID string, at, id int64) string {
	return fmt.Sprintf("msg:%s:%019d:%019d", conversationID, at, id)
}

func indexKey(conversationID string, id int64) string {
	return fmt.Sprintf("idx:msg:%s:%019d", conversationID, id)
}

func toMessage(stored DiskMessage) domain.Message {
	msg := domain.Message{
		ID:             stored.ID,
		ConversationID: stored.Conversation,
		SenderID:       stored.Sender,
		Body:           stored.Body,
		AttachmentURL:  stored.AttachmentURL,
		CreatedAt:      time.Unix(0, stored.At).UTC(),
	}
	if stored.ReadAt != 0 {
		readAt := time.Unix(0, stored.ReadAt).UTC()
		msg.ReadAt = &readAt
	}
	return msg
}
