// Package errors defines the failure taxonomy shared by repositories and
// services. Callers branch with errors.Is against these sentinels.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Is re-exports the stdlib matcher so callers importing this package do not
// need a second errors import just to branch on the sentinels.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

var (
	// ErrValidation covers malformed input: empty content, over-length
	// fields, unknown enum values.
	ErrValidation = fmt.Errorf("validation failed")

	// ErrNotFound means the referenced entity is absent or soft-deleted.
	ErrNotFound = fmt.Errorf("not found")

	// ErrForbidden means the actor lacks rights for the action.
	ErrForbidden = fmt.Errorf("forbidden")

	// ErrConflict signals a duplicate application or a lost concurrent race.
	ErrConflict = fmt.Errorf("conflict")

	// ErrInvalidTransition signals a state machine rule violation.
	ErrInvalidTransition = fmt.Errorf("invalid transition")

	// ErrPostNotOpen gates applying to a post that is not open.
	ErrPostNotOpen = fmt.Errorf("post is not open")

	// ErrChatClosed gates messaging a chat whose owning post is not open.
	ErrChatClosed = fmt.Errorf("chat is closed")

	// ErrNotParticipant means the sender does not belong to the chat.
	ErrNotParticipant = fmt.Errorf("not a chat participant")

	// ErrUnavailable wraps transient storage failures. Safe to retry by the
	// caller: nothing partial was committed.
	ErrUnavailable = fmt.Errorf("storage unavailable")
)
