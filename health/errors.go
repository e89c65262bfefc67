package health

import "errors"

var (
	// ErrCheckNotFound indicates no check is registered under the name.
	ErrCheckNotFound = errors.New("health: check not found")

	// ErrCheckTimeout indicates a check exceeded its timeout.
	ErrCheckTimeout = errors.New("health: check timed out")
)
