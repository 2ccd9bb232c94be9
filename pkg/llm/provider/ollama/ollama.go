package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/rapport/pkg/llm"
)

const (
	// DefaultBaseURL is Ollama's default listen address.
	DefaultBaseURL = "http://localhost:11434"

	defaultTimeout = 2 * time.Minute
	maxLineSize    = 1024 * 1024
	maxErrorBody   = 4096
)

// Config configures the Ollama adapter. Ollama has no credentials.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	KeepAlive  string
	HTTPClient *http.Client
}

// Provider streams from Ollama.
type Provider struct {
	baseURL   string
	timeout   time.Duration
	keepAlive string
	client    *http.Client
}

// New creates an Ollama provider.
func New(cfg Config) *Provider {
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
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   timeout,
		keepAlive: cfg.KeepAlive,
		client:    client,
	}
}

func (p *Provider) Name() string {
	return "ollama"
}

// Stream posts a streaming /api/chat request and yields canonical events
// line by line.
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
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return p.client.Do(httpReq)
}

func (p *Provider) buildRequest(req *llm.ChatRequest) chatRequest {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: llm.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	out := chatRequest{
		Model:     req.Model,
		Messages:  msgs,
		Stream:    true,
		KeepAlive: p.keepAlive,
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		out.Options = &chatOptions{Temperature: req.Temperature}
		if req.MaxTokens > 0 {
			n := req.MaxTokens
			out.Options.NumPredict = &n
		}
	}
	return out
}

// translateStream decodes an NDJSON /api/chat body into canonical events.
// A line with done=true ends the stream normally; an "error" field, a
// malformed line, or EOF before done ends it with an Error.
func translateStream(ctx context.Context, body io.Reader) iter.Seq[llm.Event] {
	return func(yield func(llm.Event) bool) {
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		for scanner.Scan() {
			raw := bytes.TrimSpace(scanner.Bytes())
			if len(raw) == 0 {
				continue
			}

			var line chatLine
			if err := json.Unmarshal(raw, &line); err != nil {
				yield(llm.Errorf("malformed stream line: %v", err))
				return
			}
			if line.Error != "" {
				yield(llm.Error(line.Error))
				return
			}
			if line.Message.Content != "" && !yield(llm.Text(line.Message.Content)) {
				return
			}
			if line.Done {
				yield(llm.Done())
				return
			}
		}

		yield(llm.UpstreamFailure(ctx, scanner.Err()))
	}
}

func statusError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Sprintf("upstream status %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Sprintf("upstream status %d", resp.StatusCode)
}

