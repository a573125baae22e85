//go:generate go run go.uber.org/mock/mockgen -source=application_service.go -destination=../mocks/mock_application_service.go -package=mocks
package services

import (
	"log/slog"
	"unicode/utf8"

	"collabhub/domain"
	"collabhub/errors"
	"collabhub/repositories"
)

// maxApplicationMessage bounds the optional pitch sent with an application.
const maxApplicationMessage = 1000

type IApplicationService interface {
	Apply(postID, applicantID, message string) (domain.Application, error)
	Transition(applicationID string, next domain.ApplicationStatus, actorID string) (domain.Application, error)
	ApplicationsForPost(postID, actorID string) ([]domain.Application, error)
	ApplicationFor(postID, applicantID string) (*domain.Application, error)
}

type ApplicationService struct {
	log          *slog.Logger
	posts        repositories.IPostRepository
	applications repositories.IApplicationRepository
}

func NewApplicationService(
	log *slog.Logger,
	posts repositories.IPostRepository,
	applications repositories.IApplicationRepository,
) *ApplicationService {
	return &ApplicationService{log: log, posts: posts, applications: applications}
}

// Apply creates a pending application and counts it, once. Duplicate live
// applications and closed posts are rejected by the repository transaction,
// which is the only place that decision can be made race-free.
func (s *ApplicationService) Apply(postID, applicantID, message string) (domain.Application, error) {
	if utf8.RuneCountInString(message) > maxApplicationMessage {
		return domain.Application{}, errors.ErrValidation
	}
	application, err := s.applications.Create(postID, applicantID, message)
	if err != nil {
		return domain.Application{}, err
	}
	s.log.Info("application created",
		"application_id", application.ID,
		"post_id", postID,
		"applicant_id", applicantID)
	return application, nil
}

func (s *ApplicationService) Transition(applicationID string, next domain.ApplicationStatus, actorID string) (domain.Application, error) {
	application, err := s.applications.Transition(applicationID, next, actorID)
	if err != nil {
		return domain.Application{}, err
	}
	s.log.Info("application transitioned",
		"application_id", applicationID,
		"status", string(next))
	return application, nil
}

// ApplicationsForPost is the poster's review view.
func (s *ApplicationService) ApplicationsForPost(postID, actorID string) ([]domain.Application, error) {
	post, err := s.posts.GetPost(postID)
	if err != nil {
		return nil, err
	}
	if post.PostedBy != actorID {
		return nil, errors.ErrForbidden
	}
	return s.applications.ListForPost(postID)
}

// ApplicationFor returns the applicant's live application to a post, nil
// when there is none.
func (s *ApplicationService) ApplicationFor(postID, applicantID string) (*domain.Application, error) {
	return s.applications.ActiveFor(postID, applicantID)
}
