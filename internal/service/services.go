package service

import (
	"github.com/deppfellow/users-service/internal/cache"
	"github.com/deppfellow/users-service/internal/repository"
	"github.com/deppfellow/users-service/internal/server"
)

type Services struct {
	Users *UserService
}

func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	var userCache UserCache
	if s.Redis != nil {
		userCache = cache.NewUserCache(s.Redis, s.Config.Redis.CacheTTL)
	}

	var events EventPublisher
	if s.Job != nil {
		events = s.Job
	}

	return &Services{
		Users: NewUserService(repos.Users, userCache, events, s.Logger),
	}, nil
}
