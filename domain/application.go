package domain

import (
	"time"

	"github.com/samber/lo"
)

// ApplicationStatus is the lifecycle state of one application to a post.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationPending:   {ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn},
	ApplicationAccepted:  {ApplicationWithdrawn},
	ApplicationRejected:  {},
	ApplicationWithdrawn: {},
}

func (s ApplicationStatus) Valid() bool {
	_, ok := applicationTransitions[s]
	return ok
}

func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return lo.Contains(applicationTransitions[s], next)
}

// Application links an applicant to a post. Never deleted, only
// transitioned; the (post, applicant) pair holds at most one application
// that is not withdrawn.
type Application struct {
	ID          string
	PostID      string
	ApplicantID string
	Message     string
	Status      ApplicationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
