package servecmder

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/config"
	"github.com/papercomputeco/rapport/pkg/encryption"
	"github.com/papercomputeco/rapport/pkg/eventstream/nop"
	"github.com/papercomputeco/rapport/pkg/logger"
	"github.com/papercomputeco/rapport/pkg/storage/inmemory"
	"github.com/papercomputeco/rapport/pkg/storage/sqlite"
)

var _ = Describe("newStack", func() {
	var (
		ctx    context.Context
		cfg    *config.Config
		tmpDir string
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		cfg, err = config.PresetConfig("ollama")
		Expect(err).NotTo(HaveOccurred())
		cfg.Storage.Driver = config.DriverMemory

		tmpDir, err = os.MkdirTemp("", "serve-stack-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)
	})

	It("builds an in-memory stack with the preset persona", func() {
		st, err := newStack(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)

		Expect(st.driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(st.publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
		Expect(st.catalog.Len()).To(Equal(1))
		Expect(st.extractor).NotTo(BeNil())
		Expect(st.codec.Enabled()).To(BeFalse())
	})

	It("resolves a relative sqlite path inside the config dir", func() {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.SQLitePath = "test.sqlite"

		st, err := newStack(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)

		Expect(st.driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(filepath.Join(tmpDir, "test.sqlite")).To(BeAnExistingFile())
	})

	It("rejects encryption without a secret", func() {
		cfg.Encryption.Enabled = true

		_, err := newStack(ctx, cfg, tmpDir, logger.Nop())
		Expect(errors.Is(err, encryption.ErrNoSecret)).To(BeTrue())
	})

	It("enables the codec when a secret is configured", func() {
		cfg.Encryption.Enabled = true
		cfg.Encryption.Secret = "s3cret"

		st, err := newStack(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)

		Expect(st.codec.Enabled()).To(BeTrue())
	})

	Describe("relayConfig", func() {
		It("wires memory into the relay and its worker pool", func() {
			st, err := newStack(ctx, cfg, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(st.Close)

			rc := st.relayConfig()
			Expect(rc.ListenAddr).To(Equal(cfg.Relay.Listen))
			Expect(rc.Personas).To(BeIdenticalTo(st.catalog))
			Expect(rc.Streamer).NotTo(BeNil())
			Expect(rc.Facts).NotTo(BeNil())
			Expect(rc.FactLimit).To(Equal(cfg.Memory.FactLimit))
			Expect(rc.Worker.History).NotTo(BeNil())
			Expect(rc.Worker.Extractor).NotTo(BeNil())
			Expect(rc.Worker.Facts).NotTo(BeNil())
			Expect(rc.Worker.Publisher).NotTo(BeNil())
			Expect(rc.Worker.NumWorkers).To(Equal(cfg.Relay.Workers))
		})

		It("leaves memory out when disabled", func() {
			cfg.Memory.Enabled = false

			st, err := newStack(ctx, cfg, tmpDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(st.Close)

			rc := st.relayConfig()
			Expect(rc.Facts).To(BeNil())
			Expect(rc.FactLimit).To(BeZero())
			Expect(rc.Worker.Extractor).To(BeNil())
			Expect(rc.Worker.Facts).To(BeNil())
		})
	})

	It("builds the API server with and without MCP", func() {
		st, err := newStack(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)

		server, err := st.newAPIServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(server).NotTo(BeNil())

		cfg.API.MCP = false
		server, err = st.newAPIServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(server).NotTo(BeNil())
	})
})

var _ = Describe("newPublisher", func() {
	It("defaults to the nop publisher", func() {
		p, err := newPublisher(config.EventStreamConfig{Provider: config.EventStreamNop})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("requires brokers for kafka", func() {
		_, err := newPublisher(config.EventStreamConfig{Provider: config.EventStreamKafka, Topic: "t"})
		Expect(err).To(HaveOccurred())
	})
})
