// Package server composes the application's shared dependencies and owns
// their lifecycle.
//
// It owns:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool and the transactional executor running on it
//   - redis client
//   - background job service (asynq)
//   - http.Server
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/users-service/internal/config"
	"github.com/deppfellow/users-service/internal/database"
	"github.com/deppfellow/users-service/internal/lib/job"
	"github.com/deppfellow/users-service/internal/transactor"
	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/users-service/internal/logger"
)

// RedisPingTimeout bounds the startup Redis check.
const RedisPingTimeout = 5 * time.Second

// StartupCleanupTimeout bounds releasing what New already opened when a
// later step fails.
const StartupCleanupTimeout = 10 * time.Second

// Server is the application container; it is not the HTTP server itself.
type Server struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	LoggerService *loggerPkg.LoggerService

	DB *database.Database

	// Executor runs every database unit of work on a bounded worker pool.
	Executor *transactor.Executor

	Redis *redis.Client

	// Job publishes and processes background tasks (asynq).
	Job *job.JobService

	httpServer *http.Server
}

// New connects to PostgreSQL and Redis, starts the executor and the job
// worker. The HTTP server is configured separately through SetupHTTPServer.
//
// Redis is optional at startup: a failed ping is logged and the service
// continues with a cold cache.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	executor := transactor.New(transactor.PoolSessions{Pool: db.Pool}, transactor.Options{
		Workers: cfg.WorkerPoolSize(),
		Logger:  logger,
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})
	if loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), RedisPingTimeout)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Redis, continuing without Redis")
	}

	jobService := job.NewJobService(logger, cfg, loggerService.GetApplication())

	srv := &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Executor:      executor,
		Redis:         redisClient,
		Job:           jobService,
	}

	if err := jobService.Start(); err != nil {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), StartupCleanupTimeout)
		defer cleanupCancel()
		return nil, errors.Join(err, srv.Shutdown(cleanupCtx))
	}

	logger.Info().
		Int("workers", executor.Workers()).
		Msg("transactional executor ready")

	return srv, nil
}

// SetupHTTPServer configures the net/http server around handler.
// Config timeouts are in seconds.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown stops the service in dependency order:
//
//  1. stop accepting HTTP requests and finish inflight ones
//  2. drain the executor so submitted units of work commit or roll back
//  3. stop the job worker, then close Redis and the database pool
//
// Every step runs even if an earlier one failed; errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown HTTP server: %w", err))
		}
	}

	if s.Executor != nil {
		if err := s.Executor.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain executor: %w", err))
		}
	}

	if s.Job != nil {
		s.Job.Stop()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		}
	}

	return errors.Join(errs...)
}
