package provider_test

import (
	"context"
	"errors"
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/llm/provider"
	"github.com/papercomputeco/rapport/pkg/logger"
	testutils "github.com/papercomputeco/rapport/pkg/utils/test"
)

func collect(seq iter.Seq[llm.Event]) []llm.Event {
	var out []llm.Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

var _ = Describe("Registry", func() {
	var registry *provider.Registry

	BeforeEach(func() {
		registry = provider.NewEmptyRegistry(logger.Nop())
	})

	It("constructs a provider once and reuses it", func() {
		calls := 0
		stub := testutils.NewStubProvider(llm.Done())
		registry.Register("stub", func() (provider.Provider, error) {
			calls++
			return stub, nil
		})

		for range 3 {
			p, err := registry.Get("stub")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(BeIdenticalTo(stub))
		}
		Expect(calls).To(Equal(1))
	})

	It("retries construction after a failure", func() {
		calls := 0
		registry.Register("flaky", func() (provider.Provider, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("no key yet")
			}
			return testutils.NewStubProvider(llm.Done()), nil
		})

		_, err := registry.Get("flaky")
		Expect(err).To(MatchError(ContainSubstring("no key yet")))
		_, err = registry.Get("flaky")
		Expect(err).NotTo(HaveOccurred())
	})

	It("yields a single error event for unknown providers", func() {
		events := collect(registry.StreamChat(context.Background(), "nope", "m", "", nil))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(llm.KindError))
		Expect(events[0].Message).To(ContainSubstring("unknown provider"))
	})

	It("builds the request from persona fields and turns", func() {
		stub := testutils.NewStubProvider(llm.Text("Great"), llm.Text(" goal!"), llm.Done())
		registry.RegisterProvider("stub", stub)

		events := collect(registry.StreamChat(context.Background(), "stub", "model-x", "be brief",
			[]llm.Message{llm.NewUserMessage("I run 3x a week")}))

		Expect(events).To(Equal([]llm.Event{llm.Text("Great"), llm.Text(" goal!"), llm.Done()}))
		req := stub.LastRequest()
		Expect(req.Model).To(Equal("model-x"))
		Expect(req.System).To(Equal("be brief"))
		Expect(req.Messages).To(Equal([]llm.Message{llm.NewUserMessage("I run 3x a week")}))
	})

	It("enforces a terminal event on misbehaving providers", func() {
		registry.RegisterProvider("stub", testutils.NewStubProvider(llm.Text("a"), llm.Done(), llm.Text("late")))
		events := collect(registry.StreamChat(context.Background(), "stub", "m", "", nil))
		Expect(events).To(Equal([]llm.Event{llm.Text("a"), llm.Done()}))
	})

	Describe("built-in providers", func() {
		It("defers missing credential errors to first use", func() {
			registry = provider.NewRegistry(provider.Config{}, logger.Nop())

			events := collect(registry.StreamChat(context.Background(), provider.Anthropic, "claude", "", nil))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Message).To(ContainSubstring("missing API key"))

			_, err := registry.Get(provider.Ollama)
			Expect(err).NotTo(HaveOccurred())
		})

		It("names openrouter distinctly", func() {
			p, err := provider.New(provider.OpenRouter, provider.Config{OpenRouterAPIKey: "k"})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal("openrouter"))
		})

		It("rejects unknown IDs", func() {
			_, err := provider.New("bedrock", provider.Config{})
			Expect(err).To(MatchError(provider.ErrUnknownProvider))
		})
	})
})

var _ = Describe("Complete", func() {
	It("concatenates text", func() {
		out, err := provider.Complete(testutils.NewStubProvider(llm.Text("[1"), llm.Text(",2]"), llm.Done()).
			Stream(context.Background(), &llm.ChatRequest{}))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("[1,2]"))
	})

	It("returns upstream errors", func() {
		_, err := provider.Complete(testutils.NewStubProvider(llm.Text("x"), llm.Error("overloaded")).
			Stream(context.Background(), &llm.ChatRequest{}))
		var upstream *provider.UpstreamError
		Expect(errors.As(err, &upstream)).To(BeTrue())
		Expect(upstream.Message).To(Equal("overloaded"))
	})

	It("rejects empty completions", func() {
		_, err := provider.Complete(testutils.NewStubProvider(llm.Done()).
			Stream(context.Background(), &llm.ChatRequest{}))
		Expect(err).To(MatchError(provider.ErrEmptyResponse))
	})
})
