// Package openai streams chat completions from the OpenAI Chat Completions
// API and from OpenAI-compatible endpoints such as OpenRouter.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/sse"
)

const (
	// DefaultBaseURL is the public OpenAI API.
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultTimeout = 2 * time.Minute
	maxErrorBody   = 4096
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: missing API key")

// Config configures an OpenAI-compatible adapter.
type Config struct {
	// Name is reported by Provider.Name. Defaults to "openai".
	Name string

	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client

	// Headers are added to every upstream request (OpenRouter attribution
	// headers, for example).
	Headers map[string]string
}

// Provider streams from a Chat Completions endpoint.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	headers map[string]string
}

// New creates a provider for an OpenAI-compatible endpoint.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w (%s)", ErrMissingAPIKey, cfg.nameOrDefault())
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Provider{
		name:    cfg.nameOrDefault(),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  client,
		headers: cfg.Headers,
	}, nil
}

func (c Config) nameOrDefault() string {
	if c.Name == "" {
		return "openai"
	}
	return c.Name
}

// Name
func (p *Provider) Name() string {
	return p.name
}

// Stream posts a streaming Chat Completions request and yields canonical
// events as SSE chunks arrive.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) iter.Seq[llm.Event] {
	return func(yield func(llm.Event) bool) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		resp, err := p.do(ctx, req)
		if err != nil {
			yield(llm.UpstreamFailure(ctx, err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield(llm.Error(statusError(resp)))
			return
		}

		for ev := range translateStream(ctx, resp.Body) {
			if !yield(ev) {
				return
			}
		}
	}
}

func (p *Provider) do(ctx context.Context, req *llm.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	return p.client.Do(httpReq)
}

func buildRequest(req *llm.ChatRequest) chatRequest {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: llm.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Stream:      true,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// translateStream decodes a Chat Completions SSE body into canonical events.
//
// "[DONE]" ends the stream normally, as does EOF after a chunk carrying a
// finish_reason. Error objects, malformed chunks, read failures, and EOF
// without a finish_reason end it with an Error.
func translateStream(ctx context.Context, body io.Reader) iter.Seq[llm.Event] {
	return func(yield func(llm.Event) bool) {
		reader := sse.NewReader(body)
		finished := false

		for {
			ev, err := reader.Next()
			if err != nil {
				yield(llm.UpstreamFailure(ctx, err))
				return
			}
			if ev == nil {
				if finished {
					yield(llm.Done())
				} else {
					yield(llm.UpstreamFailure(ctx, nil))
				}
				return
			}
			if ev.Done() {
				yield(llm.Done())
				return
			}
			if strings.TrimSpace(ev.Data) == "" {
				continue
			}

			text, finish, err := decodeChunk(ev.Data)
			if err != nil {
				yield(llm.Error(err.Error()))
				return
			}
			finished = finished || finish
			if text != "" && !yield(llm.Text(text)) {
				return
			}
		}
	}
}

// decodeChunk extracts the first choice's content delta from one chunk.
func decodeChunk(data string) (text string, finished bool, err error) {
	var chunk chatChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, fmt.Errorf("malformed stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return "", false, errors.New(chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}

	choice := chunk.Choices[0]
	return choice.Delta.Content, choice.FinishReason != nil && *choice.FinishReason != "", nil
}

func statusError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	if json.Unmarshal(raw, &body) == nil && body.Error != nil && body.Error.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", resp.StatusCode, body.Error.Message)
	}
	return fmt.Sprintf("upstream status %d", resp.StatusCode)
}
