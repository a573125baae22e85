//go:generate go run go.uber.org/mock/mockgen -source=marker.go -destination=../mocks/mock_marker_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"collabhub/domain"
)

type IMarkerRepository interface {
	MarkRead(chatID, userID string) (bool, error)
	MarkerFor(chatID, userID string) (*domain.OrderingKey, error)
	UnreadCountForChat(chatID, userID string) (int64, error)
	UnreadCountsForUser(userID string) (map[string]int64, error)
	InitialCounts(userID string) (InitialCounts, error)
}

// InitialCounts is one consistent snapshot of a user's unread state: the
// per-chat counts and their total come from the same storage view, so a
// concurrent append can never tear them apart.
type InitialCounts struct {
	TotalUnread int64
	PerChat     map[string]int64
}

// MarkerRepository tracks the per-(chat, user) read marker and the unread
// counter maintained next to it. The counter is the served value; the full
// log recount lives in the projection package as the test oracle only.
type MarkerRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMarkerRepository(db *badger.DB, log *slog.Logger) MarkerRepository {
	return MarkerRepository{db: db, log: log}
}

// MarkRead advances the user's marker to the chat's newest ordering key and
// zeroes the unread counter, in one transaction. The marker never moves
// backward, and calling with no new messages is a no-op that still succeeds.
// A message appended concurrently conflicts on the counter key; one side
// retries against the fresh state, so the user never reads a count that
// forgets their own mark.
func (m MarkerRepository) MarkRead(chatID, userID string) (bool, error) {
	err := runUpdate(m.db, func(txn *badger.Txn) error {
		latest, err := latestKey(txn, chatID)
		if err != nil {
			return err
		}
		if latest != nil {
			current, err := markerFor(txn, chatID, userID)
			if err != nil {
				return err
			}
			if current == nil || latest.After(*current) {
				if err := txn.Set(markerKey(chatID, userID), []byte(latest.Encode())); err != nil {
					return err
				}
			}
		}
		// The counter must be in this transaction's read set: a concurrent
		// append writes it, and only a read here turns that into a conflict.
		// An append landing after latestKey would otherwise slip past the
		// marker and be silently zeroed.
		if _, err := unreadCount(txn, userID, chatID); err != nil {
			return err
		}
		return txn.Set(unreadKey(userID, chatID), encodeCount(0))
	})
	if err != nil {
		return false, storageErr(err)
	}
	return true, nil
}

// MarkerFor returns the user's last-read key, or nil when the user has
// never read the chat (everything unread).
func (m MarkerRepository) MarkerFor(chatID, userID string) (*domain.OrderingKey, error) {
	var marker *domain.OrderingKey
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := markerFor(txn, chatID, userID)
		marker = found
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return marker, nil
}

func (m MarkerRepository) UnreadCountForChat(chatID, userID string) (int64, error) {
	var count int64
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := unreadCount(txn, userID, chatID)
		count = found
		return err
	})
	if err != nil {
		return 0, storageErr(err)
	}
	return count, nil
}

// UnreadCountsForUser scans the user's counter namespace in one view.
// Chats the user never received a message in have no counter key and are
// simply absent; the service fills zeroes against the chat list.
func (m MarkerRepository) UnreadCountsForUser(userID string) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := m.db.View(func(txn *badger.Txn) error {
		return scanUnread(txn, userID, counts)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return counts, nil
}

// InitialCounts reads the membership index and every counter inside a
// single view transaction, which is what makes the snapshot consistent.
func (m MarkerRepository) InitialCounts(userID string) (InitialCounts, error) {
	counts := InitialCounts{PerChat: make(map[string]int64)}
	err := m.db.View(func(txn *badger.Txn) error {
		for _, chatID := range chatIDsForUser(txn, userID) {
			counts.PerChat[chatID] = 0
		}
		if err := scanUnread(txn, userID, counts.PerChat); err != nil {
			return err
		}
		for _, count := range counts.PerChat {
			counts.TotalUnread += count
		}
		return nil
	})
	if err != nil {
		return InitialCounts{}, storageErr(err)
	}
	return counts, nil
}

func markerFor(txn *badger.Txn, chatID, userID string) (*domain.OrderingKey, error) {
	item, err := txn.Get(markerKey(chatID, userID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var key domain.OrderingKey
	err = item.Value(func(val []byte) error {
		decoded, err := domain.DecodeOrderingKey(string(val))
		if err != nil {
			return err
		}
		key = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func unreadCount(txn *badger.Txn, userID, chatID string) (int64, error) {
	item, err := txn.Get(unreadKey(userID, chatID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count uint64
	err = item.Value(func(val []byte) error {
		decoded, err := decodeCount(val)
		if err != nil {
			return err
		}
		count = decoded
		return nil
	})
	return int64(count), err
}

func incrementUnread(txn *badger.Txn, userID, chatID string) error {
	count, err := unreadCount(txn, userID, chatID)
	if err != nil {
		return err
	}
	return txn.Set(unreadKey(userID, chatID), encodeCount(uint64(count)+1))
}

func scanUnread(txn *badger.Txn, userID string, counts map[string]int64) error {
	prefix := unreadPrefix(userID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		chatID := string(it.Item().Key()[len(prefix):])
		err := it.Item().Value(func(val []byte) error {
			count, err := decodeCount(val)
			if err != nil {
				return err
			}
			counts[chatID] = int64(count)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
