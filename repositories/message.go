//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-room/domain"
	errs "chat-room/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Insert(body string) (domain.Message, error)
	GetLive() ([]domain.Message, error)
	SoftDelete(id uuid.UUID) (domain.Message, error)
	Purge(id uuid.UUID) error
}

// MessageRepository persists messages in BadgerDB.
//
// The primary key is formatted as "msg:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
//
// A secondary index "idx:id:{uuid}" resolves a message id back to its
// primary key for soft deletes and purges.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored shape. Timestamps are kept as UnixNano so
// key order and value order can never disagree.
type diskMessage struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Insert writes a new message with a server-assigned id and timestamps.
func (m MessageRepository) Insert(body string) (domain.Message, error) {
	now := time.Now().UTC()
	message := domain.Message{
		ID:        uuid.New(),
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}

	key := primaryKey(message)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(message.ID), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetLive retrieves all non-deleted messages via a prefix scan. Thanks
// to the padded timestamp in the key, messages come back sorted by
// creation time. It stops once the configured limitMessages is reached.
func (m MessageRepository) GetLive() ([]domain.Message, error) {
	var diskMessages []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				if dm.DeletedAt == nil {
					diskMessages = append(diskMessages, dm)
				}
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

	messages := make([]domain.Message, 0, len(diskMessages))
	for _, dm := range diskMessages {
		message, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// SoftDelete marks a message deleted without removing the row, and
// returns the updated message so the caller can publish the change.
func (m MessageRepository) SoftDelete(id uuid.UUID) (domain.Message, error) {
	var updated domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		key, dm, err := lookup(txn, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		dm.DeletedAt = lo.ToPtr(now.UnixNano())
		dm.UpdatedAt = now.UnixNano()

		bytes, err := json.Marshal(dm)
		if err != nil {
			return err
		}
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		updated, err = toMessage(dm)
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}
	return updated, nil
}

// Purge physically removes a message and its index entry.
func (m MessageRepository) Purge(id uuid.UUID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		key, _, err := lookup(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(indexKey(id))
	})
}

const messagePrefix = "msg:"

func primaryKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix, m.CreatedAt.UnixNano(), m.ID))
}

func indexKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("idx:id:%s", id))
}

func lookup(txn *badger.Txn, id uuid.UUID) ([]byte, diskMessage, error) {
	item, err := txn.Get(indexKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, diskMessage{}, errs.ErrUnknownMessage
		}
		return nil, diskMessage{}, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return nil, diskMessage{}, err
	}

	item, err = txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, diskMessage{}, errs.ErrUnknownMessage
		}
		return nil, diskMessage{}, err
	}
	var dm diskMessage
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &dm)
	})
	if err != nil {
		return nil, diskMessage{}, err
	}
	return key, dm, nil
}

func fromMessage(message domain.Message) diskMessage {
	dm := diskMessage{
		ID:        message.ID.String(),
		Body:      message.Body,
		CreatedAt: message.CreatedAt.UnixNano(),
		UpdatedAt: message.UpdatedAt.UnixNano(),
	}
	if message.DeletedAt != nil {
		dm.DeletedAt = lo.ToPtr(message.DeletedAt.UnixNano())
	}
	return dm
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:        parsedID,
		Body:      dm.Body,
		CreatedAt: time.Unix(0, dm.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, dm.UpdatedAt).UTC(),
	}
	if dm.DeletedAt != nil {
		message.DeletedAt = lo.ToPtr(time.Unix(0, *dm.DeletedAt).UTC())
	}
	return message, nil
}
