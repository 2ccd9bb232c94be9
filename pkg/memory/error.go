package memory

import "errors"

var (
	// ErrNotConfigured is returned when memory operations are attempted
	// but no memory store has been configured.
	ErrNotConfigured = errors.New("memory not configured")

	// ErrCircuitOpen is returned by the extractor while its circuit breaker
	// is rejecting calls.
	ErrCircuitOpen = errors.New("extraction circuit breaker is open")

	// ErrMissingUser is returned by Store operations without a user.
	ErrMissingUser = errors.New("memory requires a user id")
)
