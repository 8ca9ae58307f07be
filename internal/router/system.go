package router

import (
	"io/fs"

	"github.com/deppfellow/users-service/internal/handler"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerSystemRoutes registers the endpoints that are not part of the
// users API: health, metrics and the API docs.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers, assets fs.FS) {
	r.GET("/status", h.Health.CheckHealth)

	r.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// openapi.json and openapi.html
	r.StaticFS("/static", assets)
	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
