package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/rapport/pkg/eventstream"
	"github.com/papercomputeco/rapport/pkg/eventstream/kafka"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
		Expect(err).To(MatchError(kafka.ErrNoBrokers))
		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(MatchError(kafka.ErrNoTopic))
	})

	It("writes one keyed JSON message per event", func() {
		w := &fakeWriter{}
		p := kafka.NewPublisherWithWriter(w, 0)
		event := eventstream.NewExchangePersistedEvent(eventstream.ExchangeMeta{
			ConversationID: "conv-9",
			PersonaID:      "P1",
			MessageIDs:     []string{"a", "b"},
		})

		Expect(p.PublishExchange(context.Background(), event)).To(Succeed())
		Expect(w.messages).To(HaveLen(1))
		Expect(string(w.messages[0].Key)).To(Equal("conv-9"))

		var decoded eventstream.ExchangePersistedEvent
		Expect(json.Unmarshal(w.messages[0].Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.MessageIDs).To(Equal([]string{"a", "b"}))
	})

	It("rejects invalid events and wraps write failures", func() {
		w := &fakeWriter{err: errors.New("leader not available")}
		p := kafka.NewPublisherWithWriter(w, 0)

		Expect(p.PublishExchange(context.Background(), nil)).To(MatchError(eventstream.ErrNilExchangeEvent))
		Expect(p.PublishExchange(context.Background(), eventstream.NewExchangePersistedEvent(eventstream.ExchangeMeta{
			ConversationID: "conv-9",
		}))).To(MatchError(eventstream.ErrNoMessageIDs))
		Expect(w.messages).To(BeEmpty())

		err := p.PublishExchange(context.Background(), eventstream.NewExchangePersistedEvent(eventstream.ExchangeMeta{
			ConversationID: "conv-9",
			MessageIDs:     []string{"a"},
		}))
		Expect(err).To(MatchError(ContainSubstring("leader not available")))

		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
