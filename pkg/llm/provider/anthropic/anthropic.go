// Package anthropic streams chat completions from the Anthropic Messages API
// through the official SDK.
package anthropic

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/rapport/pkg/llm"
)

const (
	// DefaultMaxTokens is used when a request leaves MaxTokens unset. The
	// Messages API requires an explicit value.
	DefaultMaxTokens = 1024

	defaultTimeout = 2 * time.Minute
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("anthropic: missing API key")

// Config configures the Anthropic adapter.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Provider streams from Anthropic.
type Provider struct {
	client  sdk.Client
	timeout time.Duration
}

// New creates an Anthropic provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Provider{
		client:  sdk.NewClient(opts...),
		timeout: timeout,
	}, nil
}

// Name
func (p *Provider) Name() string {
	return "anthropic"
}

// Stream opens a streaming Messages call and yields canonical events.
// Breaking out of the range closes the upstream stream.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) iter.Seq[llm.Event] {
	return func(yield func(llm.Event) bool) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		stream := p.client.Messages.NewStreaming(ctx, buildParams(req))
		defer stream.Close()

		for stream.Next() {
			ev, ok := translate(stream.Current())
			if !ok {
				continue
			}
			if !yield(ev) || ev.Terminal() {
				return
			}
		}

		yield(llm.UpstreamFailure(ctx, stream.Err()))
	}
}

// translate maps one SDK stream event onto the canonical stream. Only text
// deltas and message_stop are surfaced; everything else is skipped.
func translate(event sdk.MessageStreamEventUnion) (llm.Event, bool) {
	switch evt := event.AsAny().(type) {
	case sdk.ContentBlockDeltaEvent:
		if delta, ok := evt.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
			return llm.Text(delta.Text), true
		}
	case sdk.MessageStopEvent:
		return llm.Done(), true
	}
	return llm.Event{}, false
}

func buildParams(req *llm.ChatRequest) sdk.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	messages := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			messages = append(messages, sdk.NewAssistantMessage(block))
		} else {
			messages = append(messages, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}
