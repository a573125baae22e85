// Package repositories persists the collaboration core in BadgerDB.
//
// Keys are namespaced strings. Where order matters the key embeds a 19-digit
// zero-padded nanosecond timestamp so that lexicographical iteration equals
// chronological iteration:
//
//	msg:{chatID}:{ts:019d}:{uuid}   message log entry
//	msgid:{uuid}                    message id -> log key
//	chat:{chatID}                   chat record
//	chatuser:{userID}:{chatID}      membership index
//	marker:{chatID}:{userID}        encoded last-read ordering key
//	unread:{userID}:{chatID}        maintained unread counter (uint64 BE)
//	post:{postID}                   post record
//	posttime:{ts:019d}:{postID}     creation-time index
//	postuser:{userID}:{postID}      owner index
//	app:{applicationID}             application record
//	appidx:{postID}:{applicantID}   active-application uniqueness index
//	apppost:{postID}:{appID}        applications-per-post index
//
// Counters and state transitions are only ever touched inside a transaction
// closure, so a conflict or timeout aborts the whole pair and nothing
// partial becomes visible.
package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"collabhub/domain"
)

// maxTimestamp sorts after every encoded ordering key under a prefix.
// Seeking here and iterating in reverse lands on the newest entry.
const maxTimestamp = "9999999999999999999"

func msgPrefix(chatID string) []byte {
	return []byte("msg:" + chatID + ":")
}

func msgKey(chatID string, key domain.OrderingKey) []byte {
	return []byte("msg:" + chatID + ":" + key.Encode())
}

func msgIDKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

func chatKey(chatID string) []byte {
	return []byte("chat:" + chatID)
}

func chatUserPrefix(userID string) []byte {
	return []byte("chatuser:" + userID + ":")
}

func chatUserKey(userID, chatID string) []byte {
	return []byte("chatuser:" + userID + ":" + chatID)
}

func markerKey(chatID, userID string) []byte {
	return []byte("marker:" + chatID + ":" + userID)
}

func unreadPrefix(userID string) []byte {
	return []byte("unread:" + userID + ":")
}

func unreadKey(userID, chatID string) []byte {
	return []byte("unread:" + userID + ":" + chatID)
}

func postKey(postID string) []byte {
	return []byte("post:" + postID)
}

func postTimePrefix() []byte {
	return []byte("posttime:")
}

func postTimeKey(createdAt time.Time, postID string) []byte {
	return []byte(fmt.Sprintf("posttime:%019d:%s", createdAt.UnixNano(), postID))
}

func postUserPrefix(userID string) []byte {
	return []byte("postuser:" + userID + ":")
}

func postUserKey(userID, postID string) []byte {
	return []byte("postuser:" + userID + ":" + postID)
}

func appKey(applicationID string) []byte {
	return []byte("app:" + applicationID)
}

func appIndexKey(postID, applicantID string) []byte {
	return []byte("appidx:" + postID + ":" + applicantID)
}

func appPostPrefix(postID string) []byte {
	return []byte("apppost:" + postID + ":")
}

func appPostKey(postID, applicationID string) []byte {
	return []byte("apppost:" + postID + ":" + applicationID)
}
