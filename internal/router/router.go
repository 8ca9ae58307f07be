// Package router builds the echo instance: global middleware in order,
// then the system routes and the users API.
package router

import (
	"io/fs"
	"net/http"

	"github.com/deppfellow/users-service/internal/handler"
	"github.com/deppfellow/users-service/internal/middleware"
	"github.com/deppfellow/users-service/internal/server"
	"github.com/labstack/echo/v4"
)

func NewRouter(s *server.Server, h *handler.Handlers, assets fs.FS) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	// Order matters: the context logger needs the request id and the New
	// Relic transaction, and the request logger needs the context logger.
	router.Use(
		middlewares.Global.Recover(),
		middlewares.RateLimit.Limit(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Metrics(),
	)

	registerSystemRoutes(router, h, assets)

	users := router.Group("/users")
	users.GET("", handler.Handle(h.Users.Handler, h.Users.ListUsers, http.StatusOK, handler.NewListUsersRequest))
	users.POST("", handler.Handle(h.Users.Handler, h.Users.SaveUser, http.StatusOK, handler.NewSaveUserRequest))
	users.GET("/:id", handler.Handle(h.Users.Handler, h.Users.GetUser, http.StatusOK, handler.NewGetUserRequest))
	users.DELETE("/:id", handler.Handle(h.Users.Handler, h.Users.DeleteUser, http.StatusOK, handler.NewDeleteUserRequest))

	return router
}
