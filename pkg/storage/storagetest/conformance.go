// Package storagetest holds behavior specs shared by every storage driver.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec and must return an empty store.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	exchange := func(conversationID, userID, userText, assistantText string) (*storage.MessageRecord, *storage.MessageRecord) {
		meta := storage.MessageRecord{
			ConversationID: conversationID,
			UserID:         userID,
			PersonaID:      "coach-run",
			ProviderID:     "anthropic",
			ModelID:        "claude-sonnet-4-5",
		}
		u, a := meta, meta
		u.Content = userText
		a.Content = assistantText
		return &u, &a
	}

	Describe("SaveExchange", func() {
		It("stores both halves with ids, roles and timestamps", func() {
			u, a := exchange("conv-1", "user-1", "I run 3x a week", "Great goal!")
			Expect(driver.SaveExchange(ctx, u, a)).To(Succeed())

			Expect(u.ID).NotTo(BeEmpty())
			Expect(a.ID).NotTo(BeEmpty())
			Expect(u.ID < a.ID).To(BeTrue())

			msgs, err := driver.ListMessages(ctx, storage.MessageQuery{ConversationID: "conv-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(storage.RoleUser))
			Expect(msgs[0].Content).To(Equal("I run 3x a week"))
			Expect(msgs[1].Role).To(Equal(storage.RoleAssistant))
			Expect(msgs[1].Content).To(Equal("Great goal!"))
			Expect(msgs[1].PersonaID).To(Equal("coach-run"))
			Expect(msgs[1].ModelID).To(Equal("claude-sonnet-4-5"))
			Expect(msgs[1].CreatedAt).NotTo(BeZero())
		})

		It("keeps the encrypted flag", func() {
			u, a := exchange("conv-enc", "user-1", "enc:v1:AAA", "enc:v1:BBB")
			u.Encrypted, a.Encrypted = true, true
			Expect(driver.SaveExchange(ctx, u, a)).To(Succeed())

			msgs, err := driver.ListMessages(ctx, storage.MessageQuery{ConversationID: "conv-enc"})
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs[0].Encrypted).To(BeTrue())
			Expect(msgs[1].Encrypted).To(BeTrue())
		})

		It("rejects an exchange without a conversation", func() {
			u, a := exchange("", "user-1", "x", "y")
			Expect(driver.SaveExchange(ctx, u, a)).To(MatchError(storage.ErrInvalidRecord))
		})
	})

	Describe("ListMessages", func() {
		BeforeEach(func() {
			for i, text := range []string{"one", "two", "three"} {
				u, a := exchange("conv-2", "user-1", text, "re: "+text)
				u.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
				a.CreatedAt = u.CreatedAt
				Expect(driver.SaveExchange(ctx, u, a)).To(Succeed())
			}
			u, a := exchange("conv-2", "user-2", "intruder", "hi")
			u.CreatedAt = time.Now().Add(10 * time.Second)
			a.CreatedAt = u.CreatedAt
			Expect(driver.SaveExchange(ctx, u, a)).To(Succeed())
		})

		It("filters by user", func() {
			msgs, err := driver.ListMessages(ctx, storage.MessageQuery{ConversationID: "conv-2", UserID: "user-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(6))
		})

		It("returns the most recent messages up to the limit, oldest first", func() {
			msgs, err := driver.ListMessages(ctx, storage.MessageQuery{ConversationID: "conv-2", UserID: "user-1", Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Content).To(Equal("three"))
			Expect(msgs[1].Content).To(Equal("re: three"))
		})

		It("returns nothing for unknown conversations", func() {
			msgs, err := driver.ListMessages(ctx, storage.MessageQuery{ConversationID: "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})
	})

	Describe("facts", func() {
		fact := func(text string, importance int, age time.Duration) *storage.FactRecord {
			return &storage.FactRecord{
				UserID:     "user-1",
				PersonaID:  "coach-run",
				Fact:       text,
				Category:   "goal",
				Importance: importance,
				CreatedAt:  time.Now().Add(-age).Truncate(time.Millisecond),
			}
		}

		It("orders by importance then recency", func() {
			Expect(driver.InsertFacts(ctx, []*storage.FactRecord{
				fact("old and minor", 3, 2*time.Hour),
				fact("new and minor", 3, time.Minute),
				fact("major", 9, time.Hour),
			})).To(Succeed())

			facts, err := driver.ListFacts(ctx, "user-1", "coach-run")
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(3))
			Expect(facts[0].Fact).To(Equal("major"))
			Expect(facts[1].Fact).To(Equal("new and minor"))
			Expect(facts[2].Fact).To(Equal("old and minor"))
			Expect(facts[0].ID).NotTo(BeEmpty())
			Expect(facts[0].Source).To(Equal(storage.SourceConversation))
		})

		It("scopes facts by user and persona", func() {
			other := fact("other persona", 5, 0)
			other.PersonaID = "coach-sleep"
			Expect(driver.InsertFacts(ctx, []*storage.FactRecord{fact("mine", 5, 0), other})).To(Succeed())

			facts, err := driver.ListFacts(ctx, "user-1", "coach-run")
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))

			facts, err = driver.ListFacts(ctx, "user-2", "coach-run")
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})

		It("rejects facts without text", func() {
			Expect(driver.InsertFacts(ctx, []*storage.FactRecord{fact("", 5, 0)})).To(MatchError(storage.ErrInvalidRecord))
		})

		It("deletes a user's fact and reports missing ones", func() {
			f := fact("forget me", 5, 0)
			Expect(driver.InsertFacts(ctx, []*storage.FactRecord{f})).To(Succeed())

			Expect(driver.DeleteFact(ctx, "user-2", "coach-run", f.ID)).To(Satisfy(storage.IsNotFound))
			Expect(driver.DeleteFact(ctx, "user-1", "coach-other", f.ID)).To(Satisfy(storage.IsNotFound))
			Expect(driver.DeleteFact(ctx, "user-1", "coach-run", f.ID)).To(Succeed())
			Expect(driver.DeleteFact(ctx, "user-1", "coach-run", f.ID)).To(Satisfy(storage.IsNotFound))

			facts, err := driver.ListFacts(ctx, "user-1", "coach-run")
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})
	})
}
