// Package handler is the HTTP layer, the first stop after the router.
//
// Handlers bind and validate requests with the validation package, call
// the service layer and await its futures, and map domain outcomes onto
// status codes. Everything else is left to the global error handler.
package handler
