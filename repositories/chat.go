//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"collabhub/domain"
	"collabhub/errors"
)

type IChatRepository interface {
	CreateChat(participants []string, postID string) (domain.Chat, error)
	GetChat(chatID string) (domain.Chat, error)
	GetChatIDsForUser(userID string) ([]string, error)
	GetChatListForUser(userID string) ([]domain.Chat, error)
}

// ChatRepository stores chats and the per-user membership index that makes
// "all chats of user X" a single prefix scan.
type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) ChatRepository {
	return ChatRepository{db: db}
}

func (c ChatRepository) CreateChat(participants []string, postID string) (domain.Chat, error) {
	chat := domain.Chat{
		ID:           uuid.NewString(),
		PostID:       postID,
		Participants: participants,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := marshal(chat)
	if err != nil {
		return domain.Chat{}, err
	}
	err = runUpdate(c.db, func(txn *badger.Txn) error {
		if err := txn.Set(chatKey(chat.ID), data); err != nil {
			return err
		}
		for _, userID := range participants {
			if err := txn.Set(chatUserKey(userID, chat.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Chat{}, storageErr(err)
	}
	return chat, nil
}

func (c ChatRepository) GetChat(chatID string) (domain.Chat, error) {
	var chat domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		found, err := getChat(txn, chatID)
		if err != nil {
			return err
		}
		chat = found
		return nil
	})
	if err != nil {
		return domain.Chat{}, storageErr(err)
	}
	return chat, nil
}

func (c ChatRepository) GetChatIDsForUser(userID string) ([]string, error) {
	var chatIDs []string
	err := c.db.View(func(txn *badger.Txn) error {
		chatIDs = chatIDsForUser(txn, userID)
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return chatIDs, nil
}

func (c ChatRepository) GetChatListForUser(userID string) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		for _, chatID := range chatIDsForUser(txn, userID) {
			chat, err := getChat(txn, chatID)
			if err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return chats, nil
}

func getChat(txn *badger.Txn, chatID string) (domain.Chat, error) {
	item, err := txn.Get(chatKey(chatID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}
	var chat domain.Chat
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &chat)
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func chatIDsForUser(txn *badger.Txn, userID string) []string {
	prefix := chatUserPrefix(userID)
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var chatIDs []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		chatIDs = append(chatIDs, string(it.Item().Key()[len(prefix):]))
	}
	return chatIDs
}
