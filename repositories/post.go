//go:generate go run go.uber.org/mock/mockgen -source=post.go -destination=../mocks/mock_post_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"collabhub/domain"
	"collabhub/errors"
)

type IPostRepository interface {
	CreatePost(post domain.Post) error
	GetPost(postID string) (domain.Post, error)
	Mutate(postID string, fn func(*domain.Post) error) (domain.Post, error)
	IncrementViews(postID string) (domain.Post, error)
	DeletePost(postID string) error
	ListNewest(page, limit int) ([]domain.Post, error)
	ListByUser(userID string) ([]domain.Post, error)
	ListFiltered(matches func(domain.Post) bool, page, limit int) ([]domain.Post, error)
}

// PostRepository stores posts with a creation-time index for newest-first
// paging and an owner index. All counter and status writes go through
// Mutate, which re-reads the record inside the transaction before changing
// it: that closure plus the conflict retry in runUpdate is the
// compare-and-swap discipline protecting views_count and
// applications_count.
type PostRepository struct {
	db       *badger.DB
	log      *slog.Logger
	maxLimit int
}

func NewPostRepository(db *badger.DB, log *slog.Logger, maxLimit int) PostRepository {
	return PostRepository{db: db, log: log, maxLimit: maxLimit}
}

func (p PostRepository) CreatePost(post domain.Post) error {
	data, err := marshal(post)
	if err != nil {
		return err
	}
	err = runUpdate(p.db, func(txn *badger.Txn) error {
		if err := txn.Set(postKey(post.ID), data); err != nil {
			return err
		}
		if err := txn.Set(postTimeKey(post.CreatedAt, post.ID), []byte(post.ID)); err != nil {
			return err
		}
		return txn.Set(postUserKey(post.PostedBy, post.ID), nil)
	})
	return storageErr(err)
}

func (p PostRepository) GetPost(postID string) (domain.Post, error) {
	var post domain.Post
	err := p.db.View(func(txn *badger.Txn) error {
		found, err := getPost(txn, postID)
		if err != nil {
			return err
		}
		post = found
		return nil
	})
	if err != nil {
		return domain.Post{}, storageErr(err)
	}
	return post, nil
}

// Mutate loads the post, applies fn, stamps UpdatedAt, and writes it back,
// all inside one retried transaction. fn returning an error aborts with no
// effect; fn deciding against a state change must do so from the state it
// was handed, which is always current.
func (p PostRepository) Mutate(postID string, fn func(*domain.Post) error) (domain.Post, error) {
	var updated domain.Post
	err := runUpdate(p.db, func(txn *badger.Txn) error {
		post, err := getPost(txn, postID)
		if err != nil {
			return err
		}
		if err := fn(&post); err != nil {
			return err
		}
		post.UpdatedAt = time.Now().UTC()
		if err := setPost(txn, post); err != nil {
			return err
		}
		updated = post
		return nil
	})
	if err != nil {
		return domain.Post{}, storageErr(err)
	}
	return updated, nil
}

// IncrementViews is an unconditional monotonic increment; every call lands
// exactly once, concurrent viewers included.
func (p PostRepository) IncrementViews(postID string) (domain.Post, error) {
	return p.Mutate(postID, func(post *domain.Post) error {
		post.ViewsCount++
		return nil
	})
}

func (p PostRepository) DeletePost(postID string) error {
	err := runUpdate(p.db, func(txn *badger.Txn) error {
		post, err := getPost(txn, postID)
		if err != nil {
			return err
		}
		if err := txn.Delete(postKey(postID)); err != nil {
			return err
		}
		if err := txn.Delete(postTimeKey(post.CreatedAt, postID)); err != nil {
			return err
		}
		return txn.Delete(postUserKey(post.PostedBy, postID))
	})
	return storageErr(err)
}

// ListNewest pages over all posts, newest first.
func (p PostRepository) ListNewest(page, limit int) ([]domain.Post, error) {
	return p.ListFiltered(func(domain.Post) bool { return true }, page, limit)
}

func (p PostRepository) ListByUser(userID string) ([]domain.Post, error) {
	var posts []domain.Post
	err := p.db.View(func(txn *badger.Txn) error {
		prefix := postUserPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			postID := string(it.Item().Key()[len(prefix):])
			post, err := getPost(txn, postID)
			if err != nil {
				return err
			}
			posts = append(posts, post)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return posts, nil
}

// ListFiltered walks the creation-time index newest first, keeps posts the
// predicate accepts, and pages over the matches. Posts are few compared to
// messages; a filtered walk here is fine where one over the message log
// would not be.
func (p PostRepository) ListFiltered(matches func(domain.Post) bool, page, limit int) ([]domain.Post, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > p.maxLimit {
		limit = p.maxLimit
	}
	skip := (page - 1) * limit

	posts := make([]domain.Post, 0, limit)
	err := p.db.View(func(txn *badger.Txn) error {
		prefix := postTimePrefix()
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// "posttime:" + ";" seeks past every index entry so the reverse
		// iterator starts at the newest one.
		it.Seek(append(prefix, ';'))
		for ; it.ValidForPrefix(prefix) && len(posts) < limit; it.Next() {
			postID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			post, err := getPost(txn, string(postID))
			if err != nil {
				return err
			}
			if !matches(post) {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			posts = append(posts, post)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return posts, nil
}

func getPost(txn *badger.Txn, postID string) (domain.Post, error) {
	item, err := txn.Get(postKey(postID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Post{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Post{}, err
	}
	var post domain.Post
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &post)
	})
	if err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func setPost(txn *badger.Txn, post domain.Post) error {
	data, err := marshal(post)
	if err != nil {
		return err
	}
	return txn.Set(postKey(post.ID), data)
}
