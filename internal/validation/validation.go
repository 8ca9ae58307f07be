// Package validation binds request data and validates it.
//
// Rules live in `validate:"..."` struct tags enforced by go-playground
// validator. Failures are turned into a 400 errs.HTTPError whose field
// errors use the JSON field names the client sent.
package validation
