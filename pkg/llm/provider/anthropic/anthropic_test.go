package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/llm/provider/anthropic"
)

// recordedStream is a trimmed capture of a Messages API streaming response.
const recordedStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: ping
data: {"type":"ping"}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Great"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" goal!"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}

event: message_stop
data: {"type":"message_stop"}

`

func collect(p *anthropic.Provider, req *llm.ChatRequest) []llm.Event {
	var out []llm.Event
	for ev := range p.Stream(context.Background(), req) {
		out = append(out, ev)
	}
	return out
}

var _ = Describe("Anthropic Provider", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		body    map[string]any
		req     *llm.ChatRequest
	)

	newProvider := func(timeout time.Duration) *anthropic.Provider {
		p, err := anthropic.New(anthropic.Config{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Timeout: timeout,
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		body = nil
		handler = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			handler(w, r)
		}))
		req = llm.NewChatRequest("claude-sonnet-4-5", "You are a running coach.",
			[]llm.Message{llm.NewUserMessage("hi"), llm.NewAssistantMessage("hello!")},
			"I run 3x a week")
	})

	AfterEach(func() {
		server.Close()
	})

	It("refuses construction without an API key", func() {
		_, err := anthropic.New(anthropic.Config{})
		Expect(err).To(MatchError(anthropic.ErrMissingAPIKey))
	})

	It("translates a recorded stream into text then done", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, recordedStream)
		}

		Expect(collect(newProvider(0), req)).To(Equal([]llm.Event{
			llm.Text("Great"),
			llm.Text(" goal!"),
			llm.Done(),
		}))
	})

	It("sends the system prompt, history and default max tokens", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, recordedStream)
		}
		collect(newProvider(0), req)

		Expect(body["model"]).To(Equal("claude-sonnet-4-5"))
		Expect(body["max_tokens"]).To(BeEquivalentTo(anthropic.DefaultMaxTokens))
		Expect(body["stream"]).To(BeTrue())
		Expect(fmt.Sprint(body["system"])).To(ContainSubstring("running coach"))
		Expect(body["messages"]).To(HaveLen(3))
	})

	It("reports an HTTP failure as a single error event", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		}

		events := collect(newProvider(0), req)
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(llm.KindError))
	})

	It("reports a stream that stops without message_stop as an error", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			cut := strings.Index(recordedStream, "event: content_block_stop")
			_, _ = io.WriteString(w, recordedStream[:cut])
		}

		events := collect(newProvider(0), req)
		Expect(events).To(HaveLen(3))
		Expect(events[2].Kind).To(Equal(llm.KindError))
	})

	It("reports a stalled upstream as a timeout", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}

		events := collect(newProvider(50*time.Millisecond), req)
		Expect(events).To(Equal([]llm.Event{llm.Error(llm.UpstreamTimeout)}))
	})
})
