package domain

import (
	"time"

	"github.com/samber/lo"
)

// PostStatus is the lifecycle state of a collaboration post.
type PostStatus string

const (
	PostOpen      PostStatus = "open"
	PostClosed    PostStatus = "closed"
	PostPaused    PostStatus = "paused"
	PostCompleted PostStatus = "completed" // entered by matching logic outside this core
)

// postTransitions is the closed transition table. A status missing a target
// here cannot reach it, whoever asks.
var postTransitions = map[PostStatus][]PostStatus{
	PostOpen:      {PostClosed, PostPaused},
	PostClosed:    {PostOpen},
	PostPaused:    {PostOpen, PostClosed},
	PostCompleted: {},
}

func (s PostStatus) Valid() bool {
	_, ok := postTransitions[s]
	return ok
}

func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	return lo.Contains(postTransitions[s], next)
}

// Accepting reports whether the post takes new applications and new chat
// messages. Only open posts do.
func (s PostStatus) Accepting() bool {
	return s == PostOpen
}

// Requirement describes what a poster is looking for.
type Requirement struct {
	DesiredSkills []string
	DesiredRoles  []string
}

// Post is a collaboration offer. ViewsCount and ApplicationsCount are the
// engagement counters; they are only ever mutated through storage
// transactions, never by assigning to a loaded copy.
type Post struct {
	ID                string
	Title             string
	Description       string
	PostedBy          string
	Requirements      Requirement
	TechStack         []string
	ProjectPhase      string
	ProjectType       string
	WorkMode          string
	ExperienceLevel   string
	LocationID        string
	Status            PostStatus
	ViewsCount        int64
	ApplicationsCount int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
