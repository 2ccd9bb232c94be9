package mcp

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/encryption"
	"github.com/papercomputeco/rapport/pkg/logger"
	"github.com/papercomputeco/rapport/pkg/memory"
	"github.com/papercomputeco/rapport/pkg/storage/inmemory"
)

type failingLoader struct{}

func (failingLoader) Load(context.Context, string, string, int) ([]memory.Fact, error) {
	return nil, errors.New("store offline")
}

var _ = Describe("fact_recall tool", func() {
	var (
		ctx    context.Context
		store  *memory.Store
		server *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = memory.NewStore(inmemory.NewDriver(), encryption.New("recall-secret", true), memory.StoreConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		_, err = store.Save(ctx, "user-1", "coach", []memory.Fact{
			{Text: "Training for a marathon", Category: memory.CategoryGoal, Importance: 9},
			{Text: "Prefers morning runs", Category: memory.CategoryPreference, Importance: 4},
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{Facts: store, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns decrypted facts ranked by importance", func() {
		result, output, err := server.handleFactRecall(ctx, nil, FactRecallInput{UserID: "user-1", PersonaID: "coach"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())
		Expect(output.Count).To(Equal(2))
		Expect(output.Facts[0].Text).To(Equal("Training for a marathon"))

		text, ok := result.Content[0].(*sdk.TextContent)
		Expect(ok).To(BeTrue())
		var decoded FactRecallOutput
		Expect(json.Unmarshal([]byte(text.Text), &decoded)).To(Succeed())
		Expect(decoded.Count).To(Equal(2))
	})

	It("honors the limit", func() {
		_, output, err := server.handleFactRecall(ctx, nil, FactRecallInput{UserID: "user-1", PersonaID: "coach", Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(output.Facts).To(HaveLen(1))
	})

	It("returns an empty list for an unknown user", func() {
		_, output, err := server.handleFactRecall(ctx, nil, FactRecallInput{UserID: "stranger", PersonaID: "coach"})
		Expect(err).NotTo(HaveOccurred())
		Expect(output.Facts).NotTo(BeNil())
		Expect(output.Facts).To(BeEmpty())
	})

	DescribeTable("rejects incomplete input as a tool error",
		func(input FactRecallInput, message string) {
			result, _, err := server.handleFactRecall(ctx, nil, input)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(result.Content[0].(*sdk.TextContent).Text).To(ContainSubstring(message))
		},
		Entry("no user", FactRecallInput{PersonaID: "coach"}, "user_id is required"),
		Entry("no persona", FactRecallInput{UserID: "user-1"}, "persona_id is required"),
	)

	It("reports store failures as a tool error", func() {
		server.config.Facts = failingLoader{}
		result, _, err := server.handleFactRecall(ctx, nil, FactRecallInput{UserID: "user-1", PersonaID: "coach"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
	})
})
