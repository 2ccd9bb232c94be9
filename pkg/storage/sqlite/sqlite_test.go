package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/storage"
	"github.com/papercomputeco/rapport/pkg/storage/sqlite"
	"github.com/papercomputeco/rapport/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		d, err := sqlite.NewDriver(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Describe("NewDriver", func() {
		It("creates a file database that survives reopening", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "rapport.db")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())

			u := &storage.MessageRecord{ConversationID: "c", Content: "hi"}
			a := &storage.MessageRecord{ConversationID: "c", Content: "hello"}
			Expect(d.SaveExchange(ctx, u, a)).To(Succeed())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			msgs, err := d.ListMessages(ctx, storage.MessageQuery{ConversationID: "c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
		})
	})

	It("rolls back the first half when the second fails", func() {
		ctx := context.Background()
		d, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		u := &storage.MessageRecord{ConversationID: "c", Content: "first"}
		a := &storage.MessageRecord{ConversationID: "c", Content: "second"}
		Expect(d.SaveExchange(ctx, u, a)).To(Succeed())

		// Reusing the assistant id makes the second insert collide.
		u2 := &storage.MessageRecord{ConversationID: "c", Content: "orphan?"}
		a2 := &storage.MessageRecord{ID: a.ID, ConversationID: "c", Content: "dup"}
		Expect(d.SaveExchange(ctx, u2, a2)).NotTo(Succeed())

		msgs, err := d.ListMessages(ctx, storage.MessageQuery{ConversationID: "c"})
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
	})
})
