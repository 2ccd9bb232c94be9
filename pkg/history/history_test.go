package history_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/encryption"
	"github.com/papercomputeco/rapport/pkg/history"
	"github.com/papercomputeco/rapport/pkg/logger"
	"github.com/papercomputeco/rapport/pkg/storage"
	"github.com/papercomputeco/rapport/pkg/storage/inmemory"
)

type failingMessages struct {
	*inmemory.Driver
}

func (failingMessages) SaveExchange(context.Context, *storage.MessageRecord, *storage.MessageRecord) error {
	return errors.New("disk full")
}

var _ = Describe("Writer", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		pair   history.Pair
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		pair = history.Pair{
			ConversationID: "conv-1",
			UserID:         "user-1",
			UserText:       "I run 3x a week and want to lose 10 lbs by June",
			AssistantText:  "Great goal!",
			Metadata:       history.Metadata{PersonaID: "P1", ProviderID: "anthropic", ModelID: "claude-sonnet-4-5"},
		}
	})

	It("encrypts both halves when enabled and reads them back", func() {
		w := history.NewWriter(driver, encryption.New("history-secret", true), logger.Nop())

		saved, err := w.Save(ctx, pair)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Encrypted).To(BeTrue())
		Expect(saved.UserMessageID).NotTo(BeEmpty())

		raw, err := driver.ListMessages(ctx, storage.MessageQuery{ConversationID: "conv-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(HaveLen(2))
		for _, r := range raw {
			Expect(r.Encrypted).To(BeTrue())
			Expect(encryption.IsEnvelope(r.Content)).To(BeTrue())
		}

		msgs, err := w.List(ctx, "conv-1", "user-1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs[0].Content).To(Equal(pair.UserText))
		Expect(msgs[0].Role).To(Equal("user"))
		Expect(msgs[1].Content).To(Equal("Great goal!"))
		Expect(msgs[1].PersonaID).To(Equal("P1"))
	})

	It("stores plaintext for anonymous users", func() {
		w := history.NewWriter(driver, encryption.New("history-secret", true), logger.Nop())
		pair.UserID = ""

		saved, err := w.Save(ctx, pair)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Encrypted).To(BeFalse())

		raw, err := driver.ListMessages(ctx, storage.MessageQuery{ConversationID: "conv-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw[1].Content).To(Equal("Great goal!"))
	})

	It("reads legacy plaintext next to encrypted rows", func() {
		plain := history.NewWriter(driver, encryption.New("history-secret", false), logger.Nop())
		_, err := plain.Save(ctx, pair)
		Expect(err).NotTo(HaveOccurred())

		enc := history.NewWriter(driver, encryption.New("history-secret", true), logger.Nop())
		pair.UserText, pair.AssistantText = "second", "reply"
		_, err = enc.Save(ctx, pair)
		Expect(err).NotTo(HaveOccurred())

		msgs, err := enc.List(ctx, "conv-1", "user-1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(4))
		Expect(msgs[1].Content).To(Equal("Great goal!"))
		Expect(msgs[3].Content).To(Equal("reply"))
	})

	It("refuses to list without a user", func() {
		w := history.NewWriter(driver, encryption.New("history-secret", true), logger.Nop())
		_, err := w.Save(ctx, pair)
		Expect(err).NotTo(HaveOccurred())

		msgs, err := w.List(ctx, "conv-1", "", 0)
		Expect(err).To(MatchError(history.ErrMissingUser))
		Expect(msgs).To(BeNil())
	})

	It("only lists the caller's rows", func() {
		w := history.NewWriter(driver, encryption.New("history-secret", true), logger.Nop())
		_, err := w.Save(ctx, pair)
		Expect(err).NotTo(HaveOccurred())

		msgs, err := w.List(ctx, "conv-1", "user-2", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(BeEmpty())
	})

	It("returns store failures", func() {
		w := history.NewWriter(failingMessages{driver}, encryption.New("", false), logger.Nop())
		_, err := w.Save(ctx, pair)
		Expect(err).To(MatchError(ContainSubstring("disk full")))
	})
})
