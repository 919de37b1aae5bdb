package domain

import "errors"

var (
	// ErrInvalidRequest marks missing or malformed input. It is always
	// surfaced to the caller and aborts before anything is logged.
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
)
