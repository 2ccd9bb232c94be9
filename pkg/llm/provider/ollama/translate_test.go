package ollama

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/llm"
)

func translateFixture(fixture string) []llm.Event {
	var out []llm.Event
	for ev := range translateStream(context.Background(), strings.NewReader(fixture)) {
		out = append(out, ev)
	}
	return out
}

var _ = Describe("translateStream", func() {
	It("maps message content to text and done to done", func() {
		fixture := `{"model":"llama3.2","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"Great"},"done":false}
{"model":"llama3.2","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":" goal!"},"done":false}
{"model":"llama3.2","created_at":"2025-01-01T00:00:01Z","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","eval_count":4}
`
		Expect(translateFixture(fixture)).To(Equal([]llm.Event{
			llm.Text("Great"), llm.Text(" goal!"), llm.Done(),
		}))
	})

	It("surfaces error lines", func() {
		fixture := `{"message":{"role":"assistant","content":"a"},"done":false}
{"error":"model 'nope' not found"}
`
		Expect(translateFixture(fixture)).To(Equal([]llm.Event{
			llm.Text("a"), llm.Error("model 'nope' not found"),
		}))
	})

	It("fails on malformed lines", func() {
		events := translateFixture("{oops\n")
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(llm.KindError))
	})

	It("fails when the body ends before done", func() {
		events := translateFixture(`{"message":{"role":"assistant","content":"a"},"done":false}` + "\n")
		Expect(events).To(HaveLen(2))
		Expect(events[1].Kind).To(Equal(llm.KindError))
	})

	It("skips blank lines", func() {
		fixture := "\n" + `{"message":{"content":"x"},"done":true}` + "\n\n"
		Expect(translateFixture(fixture)).To(Equal([]llm.Event{llm.Text("x"), llm.Done()}))
	})
})
