package handler

import (
	"io/fs"

	"github.com/deppfellow/users-service/internal/server"
	"github.com/deppfellow/users-service/internal/service"
)

// Handlers groups every HTTP handler so the router takes a single value.
type Handlers struct {
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
	Users   *UserHandler
}

func NewHandlers(s *server.Server, services *service.Services, assets fs.FS) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s, assets),
		Users:   NewUserHandler(s, services.Users),
	}
}
