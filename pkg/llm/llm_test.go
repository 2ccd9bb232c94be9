package llm_test

import (
	"context"
	"errors"
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/llm"
)

var _ = Describe("Event", func() {
	It("classifies terminal events", func() {
		Expect(llm.Text("hi").Terminal()).To(BeFalse())
		Expect(llm.Done().Terminal()).To(BeTrue())
		Expect(llm.Error("boom").Terminal()).To(BeTrue())
	})

	It("formats errors", func() {
		ev := llm.Errorf("status %d", 502)
		Expect(ev.Kind).To(Equal(llm.KindError))
		Expect(ev.Message).To(Equal("status 502"))
		Expect(ev.String()).To(Equal(`Error("status 502")`))
	})
})

var _ = Describe("NewChatRequest", func() {
	It("appends the new message after normalized history", func() {
		req := llm.NewChatRequest("m", "be kind", []llm.Message{
			{Role: "user", Content: "hello"},
			{Role: "system", Content: "ignored"},
			{Role: "Assistant", Content: "hi there"},
			{Role: "user", Content: "   "},
			{Role: "tool", Content: "nope"},
		}, "how are you?")

		Expect(req.Model).To(Equal("m"))
		Expect(req.System).To(Equal("be kind"))
		Expect(req.Messages).To(Equal([]llm.Message{
			llm.NewUserMessage("hello"),
			llm.NewAssistantMessage("hi there"),
			llm.NewUserMessage("how are you?"),
		}))
	})
})

var _ = Describe("Terminated", func() {
	collect := func(seq iter.Seq[llm.Event]) []llm.Event {
		var out []llm.Event
		for ev := range seq {
			out = append(out, ev)
		}
		return out
	}

	from := func(events ...llm.Event) iter.Seq[llm.Event] {
		return func(yield func(llm.Event) bool) {
			for _, ev := range events {
				if !yield(ev) {
					return
				}
			}
		}
	}

	It("passes well-formed streams through", func() {
		Expect(collect(llm.Terminated(from(llm.Text("a"), llm.Done())))).
			To(Equal([]llm.Event{llm.Text("a"), llm.Done()}))
	})

	It("drops everything after the first terminal event", func() {
		Expect(collect(llm.Terminated(from(llm.Text("a"), llm.Error("x"), llm.Text("b"), llm.Done())))).
			To(Equal([]llm.Event{llm.Text("a"), llm.Error("x")}))
	})

	It("adds an error when the stream ends early", func() {
		out := collect(llm.Terminated(from(llm.Text("a"))))
		Expect(out).To(HaveLen(2))
		Expect(out[1].Kind).To(Equal(llm.KindError))
	})

	It("stops pulling when the consumer breaks", func() {
		pulled := 0
		seq := func(yield func(llm.Event) bool) {
			for range 10 {
				pulled++
				if !yield(llm.Text("x")) {
					return
				}
			}
		}
		for range llm.Terminated(seq) {
			break
		}
		Expect(pulled).To(Equal(1))
	})
})

var _ = Describe("UpstreamFailure", func() {
	It("reports deadline expiry as a timeout", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 0)
		defer cancel()
		<-ctx.Done()
		Expect(llm.UpstreamFailure(ctx, errors.New("read tcp: i/o"))).To(Equal(llm.Error(llm.UpstreamTimeout)))
	})

	It("reports other errors verbatim", func() {
		Expect(llm.UpstreamFailure(context.Background(), errors.New("status 500"))).To(Equal(llm.Error("status 500")))
	})
})
