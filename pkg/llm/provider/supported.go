package provider

import (
	"fmt"
	"time"

	"github.com/papercomputeco/rapport/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/rapport/pkg/llm/provider/ollama"
	"github.com/papercomputeco/rapport/pkg/llm/provider/openai"
)

// Supported provider IDs
const (
	Anthropic  = "anthropic"
	OpenAI     = "openai"
	OpenRouter = "openrouter"
	Ollama     = "ollama"
)

// DefaultOpenRouterBaseURL is OpenRouter's OpenAI-compatible API root.
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Config holds upstream endpoints and credentials for the built-in providers.
type Config struct {
	Timeout time.Duration

	AnthropicBaseURL string
	AnthropicAPIKey  string

	OpenAIBaseURL string
	OpenAIAPIKey  string

	OpenRouterBaseURL string
	OpenRouterAPIKey  string

	OllamaBaseURL string
}

// SupportedProviders returns the list of all supported provider IDs.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, OpenRouter, Ollama}
}

// New constructs the built-in provider for id. Missing credentials are
// reported here, so callers that construct lazily see them on first use.
func New(id string, cfg Config) (Provider, error) {
	switch id {
	case Anthropic:
		return anthropic.New(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Timeout: cfg.Timeout,
		})
	case OpenAI:
		return openai.New(openai.Config{
			Name:    OpenAI,
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.Timeout,
		})
	case OpenRouter:
		baseURL := cfg.OpenRouterBaseURL
		if baseURL == "" {
			baseURL = DefaultOpenRouterBaseURL
		}
		return openai.New(openai.Config{
			Name:    OpenRouter,
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: baseURL,
			Timeout: cfg.Timeout,
			Headers: map[string]string{"X-Title": "rapport"},
		})
	case Ollama:
		return ollama.New(ollama.Config{
			BaseURL: cfg.OllamaBaseURL,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownProvider, id, SupportedProviders())
	}
}
