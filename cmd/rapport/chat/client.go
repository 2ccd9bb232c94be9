package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/rapport/pkg/sse"
	"github.com/papercomputeco/rapport/relay"
	"github.com/papercomputeco/rapport/relay/header"
)

// ErrStreamEnded is returned when the relay closes the stream without a
// done or error frame.
var ErrStreamEnded = errors.New("relay closed the stream early")

// Client sends chat turns to a rapport relay and decodes its event stream.
type Client struct {
	target string
	userID string
	http   *http.Client
}

// NewClient creates a client for the relay at target. An empty userID
// chats anonymously.
func NewClient(target, userID string) *Client {
	return &Client{
		target: strings.TrimRight(target, "/"),
		userID: userID,
		http: &http.Client{
			// LLM responses can be slow
			Timeout: 5 * time.Minute,
		},
	}
}

// Reply is the outcome of one turn.
type Reply struct {
	Text           string
	ConversationID string
}

// Send posts req and calls onText for each streamed text fragment.
func (c *Client) Send(ctx context.Context, req *relay.ChatRequest, onText func(string)) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.userID != "" {
		httpReq.Header.Set(header.UserHeader, c.userID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var apiErr relay.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, string(respBody))
	}

	reply := &Reply{ConversationID: resp.Header.Get(header.ConversationHeader)}
	var text strings.Builder

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return nil, ErrStreamEnded
		}

		var frame relay.Frame
		if err := json.Unmarshal([]byte(ev.Data), &frame); err != nil {
			return nil, fmt.Errorf("decoding frame: %w", err)
		}

		switch frame.Type {
		case relay.FrameText:
			text.WriteString(frame.Text)
			if onText != nil {
				onText(frame.Text)
			}
		case relay.FrameDone:
			reply.Text = text.String()
			return reply, nil
		case relay.FrameError:
			return nil, fmt.Errorf("relay error: %s", frame.Error)
		}
	}
}
