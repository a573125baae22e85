// Package domain contains the core concepts of the collaboration platform:
// chats and their messages, posts and the applications made to them.
// Entities here carry no storage concerns; ordering and lifecycle rules
// are defined next to the types they protect.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message. Content is mutable only through an
// edit by its sender; deletion is a soft flag, the log entry remains.
type Message struct {
	ID        uuid.UUID
	ChatID    string
	SenderID  string
	Content   string
	CreatedAt time.Time
	EditedAt  *time.Time
	Deleted   bool
}

// Key returns the message's position in its chat's total order.
func (m Message) Key() OrderingKey {
	return OrderingKey{At: m.CreatedAt, ID: m.ID}
}

// OrderingKey totally orders messages within a chat. The timestamp comes
// first; the UUID breaks ties when two messages land on the same nanosecond.
type OrderingKey struct {
	At time.Time
	ID uuid.UUID
}

// Encode renders the key with a 19-digit zero-padded timestamp so that
// lexicographical order on the encoded form equals chronological order.
func (k OrderingKey) Encode() string {
	return fmt.Sprintf("%019d:%s", k.At.UnixNano(), k.ID)
}

// After reports whether k sorts strictly after other.
func (k OrderingKey) After(other OrderingKey) bool {
	return k.Encode() > other.Encode()
}

// DecodeOrderingKey parses the encoded "{timestamp}:{uuid}" form.
func DecodeOrderingKey(encoded string) (OrderingKey, error) {
	at, id, found := strings.Cut(encoded, ":")
	if !found {
		return OrderingKey{}, fmt.Errorf("malformed ordering key %q", encoded)
	}
	var nanos int64
	if _, err := fmt.Sscanf(at, "%d", &nanos); err != nil {
		return OrderingKey{}, fmt.Errorf("malformed ordering key timestamp %q: %w", at, err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return OrderingKey{}, fmt.Errorf("malformed ordering key id %q: %w", id, err)
	}
	return OrderingKey{At: time.Unix(0, nanos).UTC(), ID: parsedID}, nil
}
