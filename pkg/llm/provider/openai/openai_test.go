package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/llm/provider/openai"
)

var _ = Describe("OpenAI Provider", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		seen    *http.Request
		body    map[string]any
		req     *llm.ChatRequest
	)

	collect := func(p *openai.Provider) []llm.Event {
		var out []llm.Event
		for ev := range p.Stream(context.Background(), req) {
			out = append(out, ev)
		}
		return out
	}

	newProvider := func(cfg openai.Config) *openai.Provider {
		cfg.BaseURL = server.URL + "/v1/"
		if cfg.APIKey == "" {
			cfg.APIKey = "sk-test"
		}
		p, err := openai.New(cfg)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		seen = nil
		body = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			handler(w, r)
		}))
		req = llm.NewChatRequest("gpt-4o", "You are a nutrition coach.", nil, "I skip breakfast")
		req.MaxTokens = 256
	})

	AfterEach(func() {
		server.Close()
	})

	It("refuses construction without an API key", func() {
		_, err := openai.New(openai.Config{Name: "openrouter"})
		Expect(err).To(MatchError(openai.ErrMissingAPIKey))
		Expect(err.Error()).To(ContainSubstring("openrouter"))
	})

	It("streams text and completes", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Eat\"}}]}\n\n")
			_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\" eggs\"}}]}\n\n")
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
		}

		Expect(collect(newProvider(openai.Config{}))).To(Equal([]llm.Event{
			llm.Text("Eat"), llm.Text(" eggs"), llm.Done(),
		}))
		Expect(seen.URL.Path).To(Equal("/v1/chat/completions"))
		Expect(seen.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
		Expect(body["stream"]).To(BeTrue())
		Expect(body["max_tokens"]).To(BeEquivalentTo(256))

		msgs := body["messages"].([]any)
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].(map[string]any)["role"]).To(Equal("system"))
		Expect(msgs[1].(map[string]any)["content"]).To(Equal("I skip breakfast"))
	})

	It("sends configured extra headers", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
		}
		collect(newProvider(openai.Config{Name: "openrouter", Headers: map[string]string{"X-Title": "rapport"}}))
		Expect(seen.Header.Get("X-Title")).To(Equal("rapport"))
	})

	It("reports non-200 responses with the upstream message", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
		}

		events := collect(newProvider(openai.Config{}))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(llm.KindError))
		Expect(events[0].Message).To(ContainSubstring("429"))
		Expect(events[0].Message).To(ContainSubstring("Rate limit reached"))
	})

	It("reports a stalled upstream as a timeout", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Eat\"}}]}\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}

		events := collect(newProvider(openai.Config{Timeout: 50 * time.Millisecond}))
		Expect(events).To(Equal([]llm.Event{llm.Text("Eat"), llm.Error(llm.UpstreamTimeout)}))
	})

	It("stops reading when the consumer breaks", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}

		p := newProvider(openai.Config{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range p.Stream(context.Background(), req) {
				Expect(ev).To(Equal(llm.Text("first")))
				break
			}
		}()
		Eventually(done).Should(BeClosed())
	})
})
