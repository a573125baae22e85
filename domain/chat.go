package domain

import (
	"time"

	"github.com/samber/lo"
)

// Chat is a conversation between a fixed set of participants. A chat may be
// tied to a post, in which case the post's status gates new messages.
type Chat struct {
	ID           string
	PostID       string // empty when the chat is not tied to a post
	Participants []string
	CreatedAt    time.Time
}

func (c Chat) HasParticipant(userID string) bool {
	return lo.Contains(c.Participants, userID)
}
