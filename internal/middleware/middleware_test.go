package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deppfellow/users-service/internal/config"
	"github.com/deppfellow/users-service/internal/errs"
	"github.com/deppfellow/users-service/internal/metrics"
	"github.com/deppfellow/users-service/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(out *bytes.Buffer) *server.Server {
	log := zerolog.New(out)
	return &server.Server{
		Config: &config.Config{
			Primary: config.Primary{Env: "test"},
			Server: config.ServerConfig{
				CORSAllowedOrigins: []string{"*"},
			},
			Observability: config.DefaultObservabilityConfig(),
		},
		Logger: &log,
	}
}

func newTestEcho(s *server.Server) (*echo.Echo, *Middlewares) {
	m := NewMiddlewares(s)

	e := echo.New()
	e.HTTPErrorHandler = m.Global.GlobalErrorHandler
	return e, m
}

func serve(e *echo.Echo, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(context.Background(), method, target, nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errs.HTTPError {
	t.Helper()

	var body errs.HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestRequestID(t *testing.T) {
	var buf bytes.Buffer
	e, _ := newTestEcho(newTestServer(&buf))
	e.Use(RequestID())

	var seen string
	e.GET("/ping", func(c echo.Context) error {
		seen = GetRequestID(c)
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, http.MethodGet, "/ping", http.Header{RequestIDHeader: {"abc-123"}})
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = serve(e, http.MethodGet, "/ping", nil)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestEnhanceContext_StoresLoggerInRequestContext(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf)
	e, m := newTestEcho(s)
	e.Use(RequestID(), m.ContextEnhancer.EnhanceContext())

	e.GET("/users/:id", func(c echo.Context) error {
		assert.Same(t, GetLogger(c), GetLogger(c))
		zerolog.Ctx(c.Request().Context()).Info().Msg("from service layer")
		return c.NoContent(http.StatusNoContent)
	})

	serve(e, http.MethodGet, "/users/7", http.Header{RequestIDHeader: {"req-1"}})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "from service layer", line["message"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "/users/:id", line["path"])
	assert.Equal(t, http.MethodGet, line["method"])
}

func TestGetLogger_WithoutEnhancerIsNop(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, zerolog.Disabled, GetLogger(c).GetLevel())
}

func TestGlobalErrorHandler(t *testing.T) {
	conflictCode := "USER_STALE_VERSION"

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "application error",
			err:        errs.NewConflictError("stale", true, &conflictCode),
			wantStatus: http.StatusConflict,
			wantCode:   conflictCode,
			wantMsg:    "stale",
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"),
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "METHOD_NOT_ALLOWED",
			wantMsg:    "nope",
		},
		{
			name:       "echo not found",
			err:        echo.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantMsg:    "Route not found",
		},
		{
			name:       "unknown error is sanitized",
			err:        errors.New("dial tcp 10.0.0.1:5432: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
			wantMsg:    "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e, _ := newTestEcho(newTestServer(&buf))
			e.GET("/fail", func(c echo.Context) error { return tt.err })

			rec := serve(e, http.MethodGet, "/fail", nil)
			require.Equal(t, tt.wantStatus, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestGlobalErrorHandler_UnknownRoute(t *testing.T) {
	var buf bytes.Buffer
	e, _ := newTestEcho(newTestServer(&buf))

	rec := serve(e, http.MethodGet, "/nowhere", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeError(t, rec).Message)
}

func TestMetrics_RecordsRouteTemplateAndErrorStatus(t *testing.T) {
	metrics.HTTPRequestsTotal.Reset()

	var buf bytes.Buffer
	e, m := newTestEcho(newTestServer(&buf))
	e.Use(m.Global.Metrics())

	e.GET("/users/:id", func(c echo.Context) error {
		if c.Param("id") == "404" {
			return errs.NewNotFoundError("missing", true, nil)
		}
		return c.NoContent(http.StatusOK)
	})

	serve(e, http.MethodGet, "/users/1", nil)
	serve(e, http.MethodGet, "/users/2", nil)
	serve(e, http.MethodGet, "/users/404", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/users/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/users/:id", "404")))
}

func TestRateLimit(t *testing.T) {
	metrics.RateLimitHitsTotal.Reset()

	var buf bytes.Buffer
	s := newTestServer(&buf)
	s.Config.Server.RateLimitRPS = 0.001
	s.Config.Server.RateLimitBurst = 1

	e, m := newTestEcho(s)
	e.Use(m.RateLimit.Limit())
	e.GET("/users", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/users", nil).Code)

	rec := serve(e, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", decodeError(t, rec).Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitHitsTotal.WithLabelValues("/users")))
}

func TestRateLimit_DisabledByDefault(t *testing.T) {
	var buf bytes.Buffer
	e, m := newTestEcho(newTestServer(&buf))
	e.Use(m.RateLimit.Limit())
	e.GET("/users", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for range 20 {
		require.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/users", nil).Code)
	}
}

func TestTracing_DisabledIsPassThrough(t *testing.T) {
	var buf bytes.Buffer
	e, m := newTestEcho(newTestServer(&buf))
	e.Use(m.Tracing.NewRelicMiddleware(), m.Tracing.EnhanceTracing())
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := serve(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
