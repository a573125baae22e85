//go:generate go run go.uber.org/mock/mockgen -source=post_service.go -destination=../mocks/mock_post_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"collabhub/domain"
	"collabhub/errors"
	"collabhub/repositories"
)

var validate = validator.New()

// PostInput carries the poster-editable fields. Enum values mirror what the
// platform accepts; anything else is a validation failure before storage is
// touched.
type PostInput struct {
	Title           string `validate:"required,max=150"`
	Description     string `validate:"max=2000"`
	Requirements    domain.Requirement
	TechStack       []string
	ProjectPhase    string `validate:"omitempty,oneof=idea planning development testing deployment maintenance"`
	ProjectType     string `validate:"omitempty,oneof=academic startup hackathon open_source personal freelance"`
	WorkMode        string `validate:"omitempty,oneof=remote hybrid in_person"`
	ExperienceLevel string `validate:"omitempty,oneof=beginner intermediate advanced any"`
	LocationID      string
	Status          string `validate:"omitempty,oneof=open closed paused completed"`
}

// PostFilter narrows list reads. Empty fields do not constrain; list fields
// match on any overlap.
type PostFilter struct {
	Status          string
	ProjectType     []string
	WorkMode        []string
	DesiredRoles    []string
	TechStack       []string
	ExperienceLevel []string
}

type IPostService interface {
	CreatePost(input PostInput, posterID string) (domain.Post, error)
	UpdatePost(postID string, input PostInput, actorID string) (domain.Post, error)
	DeletePost(postID, actorID string) (bool, error)
	IncrementPostView(postID string) (domain.Post, error)
	ClosePost(postID, actorID string) (domain.Post, error)
	OpenPost(postID, actorID string) (domain.Post, error)
	LoadPosts(page, limit int) ([]domain.Post, error)
	LoadPostByID(postID string) (domain.Post, error)
	LoadPostByFilter(filter PostFilter, page, limit int) ([]domain.Post, error)
	LoadPostsByUserID(userID string) ([]domain.Post, error)
	SearchProjects(search string) ([]domain.Post, error)
}

type PostService struct {
	log   *slog.Logger
	posts repositories.IPostRepository
}

func NewPostService(log *slog.Logger, posts repositories.IPostRepository) *PostService {
	return &PostService{log: log, posts: posts}
}

func (s *PostService) CreatePost(input PostInput, posterID string) (domain.Post, error) {
	if err := validate.Struct(input); err != nil {
		return domain.Post{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	now := time.Now().UTC()
	post := domain.Post{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		PostedBy:        posterID,
		Requirements:    input.Requirements,
		TechStack:       input.TechStack,
		ProjectPhase:    input.ProjectPhase,
		ProjectType:     input.ProjectType,
		WorkMode:        input.WorkMode,
		ExperienceLevel: input.ExperienceLevel,
		LocationID:      input.LocationID,
		Status:          domain.PostOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.posts.CreatePost(post); err != nil {
		return domain.Post{}, err
	}
	s.log.Info("post created", "post_id", post.ID, "posted_by", posterID)
	return post, nil
}

// UpdatePost rewrites the editable fields. A status in the input goes
// through the transition table like any other status change; the counters
// are untouchable from here.
func (s *PostService) UpdatePost(postID string, input PostInput, actorID string) (domain.Post, error) {
	if err := validate.Struct(input); err != nil {
		return domain.Post{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return s.posts.Mutate(postID, func(post *domain.Post) error {
		if post.PostedBy != actorID {
			return errors.ErrForbidden
		}
		if input.Status != "" {
			next := domain.PostStatus(input.Status)
			if next != post.Status {
				if !post.Status.CanTransitionTo(next) {
					return errors.ErrInvalidTransition
				}
				post.Status = next
			}
		}
		post.Title = strings.TrimSpace(input.Title)
		post.Description = strings.TrimSpace(input.Description)
		post.Requirements = input.Requirements
		post.TechStack = input.TechStack
		post.ProjectPhase = input.ProjectPhase
		post.ProjectType = input.ProjectType
		post.WorkMode = input.WorkMode
		post.ExperienceLevel = input.ExperienceLevel
		post.LocationID = input.LocationID
		return nil
	})
}

func (s *PostService) DeletePost(postID, actorID string) (bool, error) {
	post, err := s.posts.GetPost(postID)
	if err != nil {
		return false, err
	}
	if post.PostedBy != actorID {
		return false, errors.ErrForbidden
	}
	if err := s.posts.DeletePost(postID); err != nil {
		return false, err
	}
	s.log.Info("post deleted", "post_id", postID)
	return true, nil
}

func (s *PostService) IncrementPostView(postID string) (domain.Post, error) {
	return s.posts.IncrementViews(postID)
}

func (s *PostService) ClosePost(postID, actorID string) (domain.Post, error) {
	return s.transition(postID, domain.PostClosed, actorID)
}

func (s *PostService) OpenPost(postID, actorID string) (domain.Post, error) {
	return s.transition(postID, domain.PostOpen, actorID)
}

func (s *PostService) transition(postID string, next domain.PostStatus, actorID string) (domain.Post, error) {
	return s.posts.Mutate(postID, func(post *domain.Post) error {
		if post.PostedBy != actorID {
			return errors.ErrForbidden
		}
		if !post.Status.CanTransitionTo(next) {
			return errors.ErrInvalidTransition
		}
		post.Status = next
		return nil
	})
}

func (s *PostService) LoadPosts(page, limit int) ([]domain.Post, error) {
	return s.posts.ListNewest(page, limit)
}

func (s *PostService) LoadPostByID(postID string) (domain.Post, error) {
	return s.posts.GetPost(postID)
}

func (s *PostService) LoadPostByFilter(filter PostFilter, page, limit int) ([]domain.Post, error) {
	return s.posts.ListFiltered(filter.matches, page, limit)
}

func (s *PostService) LoadPostsByUserID(userID string) ([]domain.Post, error) {
	return s.posts.ListByUser(userID)
}

// SearchProjects is a plain case-insensitive substring scan over title,
// description, and tech stack. No index, no ranking.
func (s *PostService) SearchProjects(search string) ([]domain.Post, error) {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return nil, errors.ErrValidation
	}
	return s.posts.ListFiltered(func(post domain.Post) bool {
		if strings.Contains(strings.ToLower(post.Title), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(post.Description), needle) {
			return true
		}
		return lo.SomeBy(post.TechStack, func(tech string) bool {
			return strings.Contains(strings.ToLower(tech), needle)
		})
	}, 1, 10)
}

func (f PostFilter) matches(post domain.Post) bool {
	if f.Status != "" && post.Status != domain.PostStatus(f.Status) {
		return false
	}
	if len(f.ProjectType) > 0 && !lo.Contains(f.ProjectType, post.ProjectType) {
		return false
	}
	if len(f.WorkMode) > 0 && !lo.Contains(f.WorkMode, post.WorkMode) {
		return false
	}
	if len(f.ExperienceLevel) > 0 && !lo.Contains(f.ExperienceLevel, post.ExperienceLevel) {
		return false
	}
	if len(f.DesiredRoles) > 0 && !lo.Some(post.Requirements.DesiredRoles, f.DesiredRoles) {
		return false
	}
	if len(f.TechStack) > 0 && !lo.Some(post.TechStack, f.TechStack) {
		return false
	}
	return true
}
