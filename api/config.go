// Package api provides the read API over persisted exchanges and stored
// facts, plus an MCP endpoint for fact recall.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DefaultLimit caps list endpoints when no ?limit= is given.
	DefaultLimit int

	// MaxLimit is the largest accepted ?limit=.
	MaxLimit int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)
