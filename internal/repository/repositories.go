package repository

import (
	"github.com/deppfellow/users-service/internal/server"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	Users *UserRepository
}

// NewRepositories builds every repository on top of the server's executor.
func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Users: NewUserRepository(s.Executor),
	}
}
