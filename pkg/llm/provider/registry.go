package provider

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/papercomputeco/rapport/pkg/llm"
)

// Factory constructs a provider on first use.
type Factory func() (Provider, error)

// Registry resolves provider IDs to providers, constructing each one lazily
// and at most once. A failed construction is not cached, so a later call
// retries it.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	providers map[string]Provider
	logger    *slog.Logger
}

// NewRegistry creates a registry with the built-in providers registered
// against cfg.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	r := NewEmptyRegistry(logger)
	for _, id := range SupportedProviders() {
		r.Register(id, func() (Provider, error) {
			return New(id, cfg)
		})
	}
	return r
}

// NewEmptyRegistry creates a registry with nothing registered.
func NewEmptyRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds or replaces the factory for id, dropping any provider
// already constructed under it.
func (r *Registry) Register(id string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
	delete(r.providers, id)
}

// RegisterProvider registers an already constructed provider.
func (r *Registry) RegisterProvider(id string, p Provider) {
	r.Register(id, func() (Provider, error) { return p, nil })
}

// Get resolves id, constructing the provider if needed.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[id]; ok {
		return p, nil
	}

	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}

	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("initializing provider %q: %w", id, err)
	}
	r.providers[id] = p
	r.logger.Debug("provider initialized", "provider", id)
	return p, nil
}

// Stream resolves providerID and streams req from it. Resolution failure
// yields a single Error event. The returned sequence always honors the
// one-terminal-event contract.
func (r *Registry) Stream(ctx context.Context, providerID string, req *llm.ChatRequest) iter.Seq[llm.Event] {
	p, err := r.Get(providerID)
	if err != nil {
		r.logger.Error("provider resolution failed", "provider", providerID, "error", err)
		return llm.Single(llm.Error(err.Error()))
	}
	return llm.Terminated(p.Stream(ctx, req))
}

// StreamChat streams a completion of turns, the last of which is normally
// the new user message, from the given provider and model.
func (r *Registry) StreamChat(ctx context.Context, providerID, modelID, systemPrompt string, turns []llm.Message) iter.Seq[llm.Event] {
	return r.Stream(ctx, providerID, &llm.ChatRequest{
		Model:    modelID,
		System:   systemPrompt,
		Messages: llm.Normalize(turns),
	})
}
