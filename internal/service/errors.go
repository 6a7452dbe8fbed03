// Package service holds the business logic between the HTTP/WebSocket
// boundary and the stores: credential checks, message validation and
// encryption, and conversation aggregation.
package service

import "errors"

// Sentinel errors form the failure taxonomy the handlers translate into HTTP
// status codes. Wrap them with fmt.Errorf("%w: detail") to add context.
var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("invalid credentials")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)
