// Package middleware holds the cross-cutting HTTP concerns of the service:
// request ids, request-scoped loggers, New Relic tracing, request logging,
// metrics, rate limiting, panic recovery and the global error handler.
package middleware
