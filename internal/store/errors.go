package store

import "errors"

// Sentinel errors returned by store operations. Callers match them with
// errors.Is; the wrapped message carries the offending identifier.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidAmount = errors.New("invalid amount")
)
