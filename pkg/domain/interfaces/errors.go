package interfaces

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotSupported is returned when a backend cannot perform an operation
	ErrNotSupported = errors.New("operation not supported by backend")
)
