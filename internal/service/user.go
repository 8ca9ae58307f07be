package service

import (
	"context"
	"time"

	"github.com/deppfellow/users-service/internal/lib/job"
	"github.com/deppfellow/users-service/internal/logger"
	"github.com/deppfellow/users-service/internal/model"
	"github.com/deppfellow/users-service/internal/transactor"
	"github.com/rs/zerolog"
)

// UserStore is the persistence the service needs. *repository.UserRepository
// implements it.
type UserStore interface {
	FindByID(ctx context.Context, id int64) *transactor.Future[*model.User]
	FindAll(ctx context.Context) *transactor.Future[[]model.User]
	FindByName(ctx context.Context, name string) *transactor.Future[[]model.User]
	Save(ctx context.Context, u model.Saveable) *transactor.Future[model.User]
	Delete(ctx context.Context, id int64) *transactor.Future[transactor.Done]
}

// UserCache is a best-effort read cache. *cache.UserCache implements it.
//
// Set must never replace a newer version of the user with an older one,
// and MarkDeleted must keep older versions out until the entry expires.
type UserCache interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	Set(ctx context.Context, user model.User) error
	MarkDeleted(ctx context.Context, id int64) error
}

// EventPublisher announces committed writes. *job.JobService implements it.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, event job.UserEvent, userID, version int64) error
}

// SaveResult is the outcome of Save. Created is true when the input was a
// NewUser and a row was inserted.
type SaveResult struct {
	User    model.User
	Created bool
}

// SideEffectTimeout bounds every cache call and event publish, so an
// unreachable Redis delays a request by at most this much.
const SideEffectTimeout = 2 * time.Second

type UserService struct {
	store  UserStore
	cache  UserCache
	events EventPublisher
	log    *zerolog.Logger

	sideEffectTimeout time.Duration
}

// NewUserService wires the service. cache and events may be nil.
func NewUserService(store UserStore, cache UserCache, events EventPublisher, log *zerolog.Logger) *UserService {
	return &UserService{
		store:             store,
		cache:             cache,
		events:            events,
		log:               log,
		sideEffectTimeout: SideEffectTimeout,
	}
}

// Get resolves to nil when the user does not exist. Cache errors fall back
// to the store.
func (s *UserService) Get(ctx context.Context, id int64) *transactor.Future[*model.User] {
	if s.cache != nil {
		var cached *model.User
		err := s.bounded(ctx, func(ctx context.Context) error {
			var err error
			cached, err = s.cache.Get(ctx, id)
			return err
		})
		if err != nil {
			s.logger(ctx).Warn().Err(err).Int64("user_id", id).Msg("user cache lookup failed")
		} else if cached != nil {
			return transactor.Completed(cached, nil)
		}
	}

	return transactor.Map(s.store.FindByID(ctx, id), func(user *model.User) (*model.User, error) {
		if user == nil || s.cache == nil {
			return user, nil
		}

		// A write may have committed since this read; the cache keeps
		// whichever version is newer.
		if err := s.bounded(ctx, func(ctx context.Context) error {
			return s.cache.Set(ctx, *user)
		}); err != nil {
			s.logger(ctx).Warn().Err(err).Int64("user_id", id).Msg("user cache fill failed")
		}
		return user, nil
	})
}

// List returns users named name, or every user when name is empty.
func (s *UserService) List(ctx context.Context, name string) *transactor.Future[[]model.User] {
	if name != "" {
		return s.store.FindByName(ctx, name)
	}
	return s.store.FindAll(ctx)
}

// Save inserts or updates. A stale update fails with an error matching
// model.ErrStaleVersion.
func (s *UserService) Save(ctx context.Context, u model.Saveable) *transactor.Future[SaveResult] {
	_, created := u.(model.NewUser)

	return transactor.Map(s.store.Save(ctx, u), func(saved model.User) (SaveResult, error) {
		event := job.UserUpdated
		if created {
			event = job.UserCreated
		}
		s.afterCommit(ctx, event, saved.ID, saved.Version, func(ctx context.Context) error {
			return s.cache.Set(ctx, saved)
		})

		return SaveResult{User: saved, Created: created}, nil
	})
}

// Delete succeeds whether or not the user existed.
func (s *UserService) Delete(ctx context.Context, id int64) *transactor.Future[transactor.Done] {
	return transactor.Map(s.store.Delete(ctx, id), func(done transactor.Done) (transactor.Done, error) {
		s.afterCommit(ctx, job.UserDeleted, id, 0, func(ctx context.Context) error {
			return s.cache.MarkDeleted(ctx, id)
		})
		return done, nil
	})
}

// afterCommit writes the committed state to the cache and publishes
// event. The write has already committed, so failures are logged and
// swallowed.
func (s *UserService) afterCommit(ctx context.Context, event job.UserEvent, id, version int64, updateCache func(context.Context) error) {
	log := s.logger(ctx)

	if s.cache != nil {
		if err := s.bounded(ctx, updateCache); err != nil {
			log.Warn().Err(err).Int64("user_id", id).Msg("user cache update failed")
		}
	}

	if s.events != nil {
		if err := s.bounded(ctx, func(ctx context.Context) error {
			return s.events.PublishUserEvent(ctx, event, id, version)
		}); err != nil {
			log.Warn().Err(err).Int64("user_id", id).Str("event", string(event)).Msg("user event not published")
		}
	}
}

// bounded runs fn without the request's cancellation but within
// sideEffectTimeout.
func (s *UserService) bounded(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *UserService) logger(ctx context.Context) *zerolog.Logger {
	return logger.FromContext(ctx, s.log)
}
