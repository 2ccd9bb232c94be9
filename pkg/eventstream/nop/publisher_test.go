package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/eventstream"
	"github.com/papercomputeco/rapport/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p *nop.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("rejects events that fail validation", func() {
		Expect(p.PublishExchange(context.Background(), nil)).To(MatchError(eventstream.ErrNilExchangeEvent))
		Expect(p.PublishExchange(context.Background(), &eventstream.ExchangePersistedEvent{})).
			To(MatchError(eventstream.ErrMissingConversation))
		Expect(p.Dropped()).To(BeZero())
	})

	It("counts valid events it discards", func() {
		event := eventstream.NewExchangePersistedEvent(eventstream.ExchangeMeta{
			ConversationID: "conv-1",
			MessageIDs:     []string{"u", "a"},
		})
		Expect(p.PublishExchange(context.Background(), event)).To(Succeed())
		Expect(p.PublishExchange(context.Background(), event)).To(Succeed())
		Expect(p.Dropped()).To(BeEquivalentTo(2))
	})

	It("closes successfully", func() {
		Expect(p.Close()).To(Succeed())
	})
})
