// Package projection derives read-side views from the raw message log.
//
// The served unread counts are maintained incrementally by the
// repositories; the full recount here exists as the correctness oracle the
// tests hold those counters against. It pages through the entire log, which
// is exactly why it is not the serving path.
package projection

import (
	"collabhub/domain"
	"collabhub/repositories"
)

// Recounter recomputes unread counts from first principles: every message
// with an ordering key past the user's marker, authored by someone else.
type Recounter struct {
	messages repositories.IMessageRepository
	markers  repositories.IMarkerRepository
}

func NewRecounter(messages repositories.IMessageRepository, markers repositories.IMarkerRepository) Recounter {
	return Recounter{messages: messages, markers: markers}
}

// UnreadCount walks the whole chat log and applies the definition. A chat
// with no messages is 0 unread regardless of marker state; a user's own
// messages never count.
func (r Recounter) UnreadCount(chatID, userID string) (int64, error) {
	marker, err := r.markers.MarkerFor(chatID, userID)
	if err != nil {
		return 0, err
	}

	var count int64
	for page := 1; ; page++ {
		messages, err := r.messages.GetMessages(chatID, page, 10)
		if err != nil {
			return 0, err
		}
		if len(messages) == 0 {
			return count, nil
		}
		for _, message := range messages {
			if message.SenderID == userID {
				continue
			}
			if marker == nil || message.Key().After(*marker) {
				count++
			}
		}
	}
}

// Unread reports whether a single message is unread for the user under the
// given marker. Exposed for tests that reason about boundaries.
func Unread(message domain.Message, userID string, marker *domain.OrderingKey) bool {
	if message.SenderID == userID {
		return false
	}
	return marker == nil || message.Key().After(*marker)
}
