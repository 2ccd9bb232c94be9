package relay

import (
	"context"
	"iter"

	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/memory"
	"github.com/papercomputeco/rapport/pkg/persona"
	"github.com/papercomputeco/rapport/relay/worker"
)

// Streamer opens a provider stream by ID. *provider.Registry satisfies it.
type Streamer interface {
	Stream(ctx context.Context, providerID string, req *llm.ChatRequest) iter.Seq[llm.Event]
}

// FactLoader reads a user's ranked facts for a persona. *memory.Store
// satisfies it.
type FactLoader interface {
	Load(ctx context.Context, userID, personaID string, limit int) ([]memory.Fact, error)
}

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// RateLimit is the sustained requests per second allowed per user.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size per user.
	RateBurst int

	// FactLimit is how many stored facts are added to the system prompt.
	// Zero disables fact recall.
	FactLimit int

	// Personas resolves persona IDs. Required.
	Personas *persona.Catalog

	// Streamer opens upstream streams. Required.
	Streamer Streamer

	// Facts is an optional fact source for prompt personalization.
	Facts FactLoader

	// Worker configures the post-processing pool.
	Worker worker.Config
}
