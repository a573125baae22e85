//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"collabhub/domain"
	"collabhub/errors"
)

type IMessageRepository interface {
	Append(message domain.Message, recipients []string, postID string) error
	GetMessages(chatID string, page, limit int) ([]domain.Message, error)
	EditMessage(messageID uuid.UUID, content, requesterID string) (domain.Message, error)
	DeleteMessage(messageID uuid.UUID, requesterID string) (bool, error)
	LatestKey(chatID string) (*domain.OrderingKey, error)
}

// MessageRepository owns the append-only message log of every chat.
// The log key embeds the ordering key, so a prefix scan walks a chat's
// history in order; msgid entries point back into the log for id lookups.
type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	maxLimit int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, maxLimit int) MessageRepository {
	return MessageRepository{db: db, log: log, maxLimit: maxLimit}
}

// Append writes the message and bumps the unread counter of every recipient
// in one transaction. The counter bumps riding the same commit is what makes
// the maintained unread counts trustworthy: either the message and all its
// counter effects are visible, or none of them are.
//
// A non-empty postID is the chat's linked post; its status is re-read inside
// the transaction, so a post closed after the caller's gate check still
// rejects the message with ChatClosed.
func (m MessageRepository) Append(message domain.Message, recipients []string, postID string) error {
	data, err := marshal(message)
	if err != nil {
		return err
	}
	logKey := msgKey(message.ChatID, message.Key())
	err = runUpdate(m.db, func(txn *badger.Txn) error {
		if postID != "" {
			post, err := getPost(txn, postID)
			if stderrors.Is(err, errors.ErrNotFound) {
				return errors.ErrChatClosed
			}
			if err != nil {
				return err
			}
			if !post.Status.Accepting() {
				return errors.ErrChatClosed
			}
		}
		if err := txn.Set(logKey, data); err != nil {
			return err
		}
		if err := txn.Set(msgIDKey(message.ID), logKey); err != nil {
			return err
		}
		for _, userID := range recipients {
			if userID == message.SenderID {
				continue
			}
			if err := incrementUnread(txn, userID, message.ChatID); err != nil {
				return err
			}
		}
		return nil
	})
	return storageErr(err)
}

// GetMessages returns one page of a chat's history, newest first.
// Pages are 1-indexed; a page past the end is an empty slice, not an error.
func (m MessageRepository) GetMessages(chatID string, page, limit int) ([]domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > m.maxLimit {
		limit = m.maxLimit
	}
	skip := (page - 1) * limit

	messages := make([]domain.Message, 0, limit)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := msgPrefix(chatID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(prefix, []byte(maxTimestamp)...))
		for ; it.ValidForPrefix(prefix) && skip > 0; it.Next() {
			skip--
		}
		for ; it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return messages, nil
}

// EditMessage replaces the content and stamps EditedAt. Only the original
// sender may edit; a soft-deleted message is gone as far as edits go.
func (m MessageRepository) EditMessage(messageID uuid.UUID, content, requesterID string) (domain.Message, error) {
	var updated domain.Message
	err := runUpdate(m.db, func(txn *badger.Txn) error {
		message, logKey, err := getMessageByID(txn, messageID)
		if err != nil {
			return err
		}
		if message.Deleted {
			return errors.ErrNotFound
		}
		if message.SenderID != requesterID {
			return errors.ErrForbidden
		}
		now := time.Now().UTC()
		message.Content = content
		message.EditedAt = &now
		data, err := marshal(message)
		if err != nil {
			return err
		}
		if err := txn.Set(logKey, data); err != nil {
			return err
		}
		updated = message
		return nil
	})
	if err != nil {
		return domain.Message{}, storageErr(err)
	}
	return updated, nil
}

// DeleteMessage soft-deletes. Deleting twice is not an error: the second
// call reports false and changes nothing.
func (m MessageRepository) DeleteMessage(messageID uuid.UUID, requesterID string) (bool, error) {
	deleted := false
	err := runUpdate(m.db, func(txn *badger.Txn) error {
		deleted = false
		message, logKey, err := getMessageByID(txn, messageID)
		if err != nil {
			return err
		}
		if message.Deleted {
			return nil
		}
		if message.SenderID != requesterID {
			return errors.ErrForbidden
		}
		message.Deleted = true
		data, err := marshal(message)
		if err != nil {
			return err
		}
		if err := txn.Set(logKey, data); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, storageErr(err)
	}
	return deleted, nil
}

// LatestKey returns the ordering key of the chat's newest message, or nil
// for a chat with no messages yet.
func (m MessageRepository) LatestKey(chatID string) (*domain.OrderingKey, error) {
	var latest *domain.OrderingKey
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := latestKey(txn, chatID)
		latest = key
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return latest, nil
}

func latestKey(txn *badger.Txn, chatID string) (*domain.OrderingKey, error) {
	prefix := msgPrefix(chatID)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	it.Seek(append(prefix, []byte(maxTimestamp)...))
	if !it.ValidForPrefix(prefix) {
		return nil, nil
	}
	encoded := string(it.Item().Key()[len(prefix):])
	key, err := domain.DecodeOrderingKey(encoded)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func getMessageByID(txn *badger.Txn, messageID uuid.UUID) (domain.Message, []byte, error) {
	item, err := txn.Get(msgIDKey(messageID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, nil, errors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	logKey, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, nil, err
	}
	logItem, err := txn.Get(logKey)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, nil, errors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	var message domain.Message
	err = logItem.Value(func(val []byte) error {
		return unmarshal(val, &message)
	})
	if err != nil {
		return domain.Message{}, nil, err
	}
	return message, logKey, nil
}
