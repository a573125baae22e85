//go:generate go run go.uber.org/mock/mockgen -source=application.go -destination=../mocks/mock_application_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"collabhub/domain"
	"collabhub/errors"
)

type IApplicationRepository interface {
	Create(postID, applicantID, message string) (domain.Application, error)
	Get(applicationID string) (domain.Application, error)
	Transition(applicationID string, next domain.ApplicationStatus, actorID string) (domain.Application, error)
	ListForPost(postID string) ([]domain.Application, error)
	ActiveFor(postID, applicantID string) (*domain.Application, error)
}

// ApplicationRepository stores applications together with the uniqueness
// index that enforces "one live application per (post, applicant)" and the
// post's applications_count. Creation and withdrawal adjust the counter in
// the same transaction as the status write, so the counter can never drift
// from the states it summarizes.
type ApplicationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewApplicationRepository(db *badger.DB, log *slog.Logger) ApplicationRepository {
	return ApplicationRepository{db: db, log: log}
}

// Create applies to a post. Fails with Conflict while a non-withdrawn
// application from the same applicant exists, and with PostNotOpen unless
// the post accepts applications. Counts the application exactly once.
func (a ApplicationRepository) Create(postID, applicantID, message string) (domain.Application, error) {
	var created domain.Application
	err := runUpdate(a.db, func(txn *badger.Txn) error {
		post, err := getPost(txn, postID)
		if err != nil {
			return err
		}
		if !post.Status.Accepting() {
			return errors.ErrPostNotOpen
		}
		if _, err := txn.Get(appIndexKey(postID, applicantID)); err == nil {
			return errors.ErrConflict
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now().UTC()
		application := domain.Application{
			ID:          uuid.NewString(),
			PostID:      postID,
			ApplicantID: applicantID,
			Message:     message,
			Status:      domain.ApplicationPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := setApplication(txn, application); err != nil {
			return err
		}
		if err := txn.Set(appIndexKey(postID, applicantID), []byte(application.ID)); err != nil {
			return err
		}
		if err := txn.Set(appPostKey(postID, application.ID), nil); err != nil {
			return err
		}

		post.ApplicationsCount++
		post.UpdatedAt = now
		if err := setPost(txn, post); err != nil {
			return err
		}
		created = application
		return nil
	})
	if err != nil {
		return domain.Application{}, storageErr(err)
	}
	return created, nil
}

func (a ApplicationRepository) Get(applicationID string) (domain.Application, error) {
	var application domain.Application
	err := a.db.View(func(txn *badger.Txn) error {
		found, err := getApplication(txn, applicationID)
		if err != nil {
			return err
		}
		application = found
		return nil
	})
	if err != nil {
		return domain.Application{}, storageErr(err)
	}
	return application, nil
}

// Transition moves the application along the state machine. The poster may
// accept or reject, the applicant may withdraw; everything else is
// Forbidden. A withdrawal releases the uniqueness index and decrements the
// post's applications_count, floored at zero, in the same commit. Two
// racing transitions serialize: the loser re-reads a state that already
// moved and fails with InvalidTransition before touching any counter.
func (a ApplicationRepository) Transition(applicationID string, next domain.ApplicationStatus, actorID string) (domain.Application, error) {
	if !next.Valid() {
		return domain.Application{}, errors.ErrValidation
	}
	var updated domain.Application
	err := runUpdate(a.db, func(txn *badger.Txn) error {
		application, err := getApplication(txn, applicationID)
		if err != nil {
			return err
		}
		if !application.Status.CanTransitionTo(next) {
			return errors.ErrInvalidTransition
		}

		withdrawal := next == domain.ApplicationWithdrawn
		if withdrawal {
			if actorID != application.ApplicantID {
				return errors.ErrForbidden
			}
		} else {
			post, err := getPost(txn, application.PostID)
			if err != nil {
				return err
			}
			if actorID != post.PostedBy {
				return errors.ErrForbidden
			}
		}

		application.Status = next
		application.UpdatedAt = time.Now().UTC()
		if err := setApplication(txn, application); err != nil {
			return err
		}

		if withdrawal {
			if err := txn.Delete(appIndexKey(application.PostID, application.ApplicantID)); err != nil {
				return err
			}
			// The post may have been deleted since; the withdrawal itself
			// still stands, there is just no counter left to adjust.
			post, err := getPost(txn, application.PostID)
			if stderrors.Is(err, errors.ErrNotFound) {
				updated = application
				return nil
			}
			if err != nil {
				return err
			}
			if post.ApplicationsCount > 0 {
				post.ApplicationsCount--
			}
			post.UpdatedAt = application.UpdatedAt
			if err := setPost(txn, post); err != nil {
				return err
			}
		}
		updated = application
		return nil
	})
	if err != nil {
		return domain.Application{}, storageErr(err)
	}
	return updated, nil
}

func (a ApplicationRepository) ListForPost(postID string) ([]domain.Application, error) {
	var applications []domain.Application
	err := a.db.View(func(txn *badger.Txn) error {
		prefix := appPostPrefix(postID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			applicationID := string(it.Item().Key()[len(prefix):])
			application, err := getApplication(txn, applicationID)
			if err != nil {
				return err
			}
			applications = append(applications, application)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return applications, nil
}

// ActiveFor returns the applicant's live (non-withdrawn) application to the
// post, or nil when there is none.
func (a ApplicationRepository) ActiveFor(postID, applicantID string) (*domain.Application, error) {
	var active *domain.Application
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(appIndexKey(postID, applicantID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		applicationID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		application, err := getApplication(txn, string(applicationID))
		if err != nil {
			return err
		}
		active = &application
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return active, nil
}

func getApplication(txn *badger.Txn, applicationID string) (domain.Application, error) {
	item, err := txn.Get(appKey(applicationID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Application{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Application{}, err
	}
	var application domain.Application
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &application)
	})
	if err != nil {
		return domain.Application{}, err
	}
	return application, nil
}

func setApplication(txn *badger.Txn, application domain.Application) error {
	data, err := marshal(application)
	if err != nil {
		return err
	}
	return txn.Set(appKey(application.ID), data)
}
