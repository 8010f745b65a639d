// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates the input failed domain validation.
var ErrValidation = errors.New("validation failed")

// ErrInfrastructure indicates a fault in the backing infrastructure
// (database, message queue, entire backend fleet). This is the only error
// class that fails an assessment outright.
var ErrInfrastructure = errors.New("infrastructure fault")
