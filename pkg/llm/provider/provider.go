// Package provider normalizes upstream LLM streaming APIs behind one
// interface and resolves providers by ID.
package provider

import (
	"context"
	"errors"
	"iter"

	"github.com/papercomputeco/rapport/pkg/llm"
)

var (
	// ErrUnknownProvider is returned when a provider ID has no registration.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyResponse is returned by Complete when the stream finished
	// without any text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Provider streams a chat completion as canonical events.
type Provider interface {
	// Name returns the canonical provider name (e.g., "anthropic", "openai", "openrouter", "ollama")
	Name() string

	// Stream yields zero or more Text events followed by exactly one Done or
	// Error. The sequence is pull driven: nothing is read from the upstream
	// until the consumer asks for the next event, and breaking out of the
	// range releases the upstream connection.
	Stream(ctx context.Context, req *llm.ChatRequest) iter.Seq[llm.Event]
}

// UpstreamError is the error form of a terminal Error event.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "upstream provider error: " + e.Message
}
