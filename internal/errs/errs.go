// Package errs defines the error shapes returned to API clients.
//
// Every failure leaves the service as an HTTPError so clients always get
// the same JSON body: a machine-readable code, a message, the status and
// optional field-level errors for form validation.
package errs
