package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/deppfellow/users-service/internal/middleware"
	"github.com/deppfellow/users-service/internal/server"
	"github.com/labstack/echo/v4"
)

// HealthHandler serves /status for load balancers and uptime monitors.
type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type checkResult struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// CheckHealth answers 200 when the database is reachable and 503 otherwise.
// Redis is reported but never fails the check: the service runs without
// its cache.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	cfg := h.server.Config.Observability

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	checks := map[string]checkResult{}
	isHealthy := true

	timeout := cfg.HealthChecks.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if cfg.HealthCheckEnabled("database") {
		result := h.check(c.Request().Context(), timeout, func(ctx context.Context) error {
			if h.server.DB == nil {
				return errNotInitialized
			}
			return h.server.DB.Pool.Ping(ctx)
		})
		checks["database"] = result

		if result.Status != statusHealthy {
			isHealthy = false
			logger.Error().Str("error", result.Error).Msg("database health check failed")
			h.recordFailure("database", result)
		}
	}

	if cfg.HealthCheckEnabled("redis") && h.server.Redis != nil {
		result := h.check(c.Request().Context(), timeout, func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		})
		checks["redis"] = result

		if result.Status != statusHealthy {
			logger.Warn().Str("error", result.Error).Msg("redis health check failed")
			h.recordFailure("redis", result)
		}
	}

	response := map[string]any{
		"status":      statusHealthy,
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}
	if h.server.Executor != nil {
		response["workers"] = h.server.Executor.Workers()
	}

	if !isHealthy {
		response["status"] = statusUnhealthy
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Debug().Dur("total_duration", time.Since(start)).Msg("health check passed")
	return c.JSON(http.StatusOK, response)
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

var errNotInitialized = errors.New("not initialized")

func (h *HealthHandler) check(parent context.Context, timeout time.Duration, ping func(context.Context) error) checkResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	result := checkResult{
		Status:       statusHealthy,
		ResponseTime: time.Since(start).String(),
	}
	if err != nil {
		result.Status = statusUnhealthy
		result.Error = err.Error()
	}
	return result
}

func (h *HealthHandler) recordFailure(check string, result checkResult) {
	if app := h.server.LoggerService.GetApplication(); app != nil {
		app.RecordCustomEvent("HealthCheckError", map[string]any{
			"check_type":    check,
			"operation":     "health_check",
			"error_type":    check + "_unhealthy",
			"response_time": result.ResponseTime,
			"error_message": result.Error,
		})
	}
}
