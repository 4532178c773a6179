package domain

import "errors"

// Domain errors (no external dependencies). Handlers map these to HTTP
// status codes; the issuance pipeline wraps them with the failed step.
var (
	ErrValidation         = errors.New("invalid input")
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("conflict with current state")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEmailAlreadyExists = errors.New("email already registered")

	// Issuance pipeline failures.
	ErrAllocation = errors.New("sequence allocation failed")
	ErrEncoding   = errors.New("structured document rejected")
	ErrStorage    = errors.New("archival storage failure")

	// ErrImmutable guards against any mutation of an issued invoice other
	// than the issued -> cancelled status transition.
	ErrImmutable = errors.New("invoice is immutable")
)
