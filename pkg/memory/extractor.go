package memory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/llm/provider"
)

// Extractor derives facts from one exchange.
type Extractor interface {
	// Extract returns facts the user stated in userText. An error means the
	// secondary call itself failed; an unusable response is not an error
	// and yields no facts.
	Extract(ctx context.Context, userText, assistantText, domain string) ([]Fact, error)
}

// Streamer opens a provider stream by ID. *provider.Registry satisfies it.
type Streamer interface {
	Stream(ctx context.Context, providerID string, req *llm.ChatRequest) iter.Seq[llm.Event]
}

// ExtractorConfig configures an LLMExtractor.
type ExtractorConfig struct {
	ProviderID string
	ModelID    string
	MaxTokens  int

	// Timeout bounds each extraction call.
	Timeout time.Duration

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// LLMExtractor extracts facts with a secondary model call guarded by a
// circuit breaker, so a failing extraction provider stops being called for
// a while instead of adding latency to every background job.
type LLMExtractor struct {
	streamer Streamer
	config   ExtractorConfig
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewLLMExtractor creates an extractor calling cfg.ProviderID through streamer.
func NewLLMExtractor(streamer Streamer, cfg ExtractorConfig, logger *slog.Logger) *LLMExtractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	e := &LLMExtractor{
		streamer: streamer,
		config:   cfg,
		logger:   logger,
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fact-extraction",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return e
}

// Extract runs the secondary call and parses its response.
func (e *LLMExtractor) Extract(ctx context.Context, userText, assistantText, domain string) ([]Fact, error) {
	system, message := ExtractionPrompt(userText, assistantText, domain)
	req := &llm.ChatRequest{
		Model:     e.config.ModelID,
		System:    system,
		Messages:  []llm.Message{llm.NewUserMessage(message)},
		MaxTokens: e.config.MaxTokens,
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
		return provider.Complete(e.streamer.Stream(ctx, e.config.ProviderID, req))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	response, _ := result.(string)
	facts := ParseFacts(response)
	if len(facts) == 0 {
		e.logger.Debug("extraction produced no facts", "provider", e.config.ProviderID, "response_len", len(response))
	}
	return facts, nil
}
