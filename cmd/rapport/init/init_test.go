package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/rapport/cmd/rapport/init"
	"github.com/papercomputeco/rapport/pkg/cliui"
	"github.com/papercomputeco/rapport/pkg/config"
)

var _ = Describe("init command", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "rapport-init-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates .rapport with a preset config", func() {
		Expect(run("--preset", "anthropic")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Initialized"))
		Expect(out.String()).To(ContainSubstring("Writing config.toml"))
		Expect(out.String()).To(ContainSubstring(cliui.SuccessMark))

		cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".rapport"))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Personas).To(HaveLen(1))
		Expect(cfg.Personas[0].ProviderID).To(Equal("anthropic"))
	})

	It("leaves an existing config alone", func() {
		dir := filepath.Join(tmpDir, ".rapport")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[relay]\nlisten = \":9999\"\n"), 0o600)).To(Succeed())

		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(":9999"))
	})

	It("rejects unknown presets without creating anything", func() {
		Expect(run("--preset", "bedrock")).To(MatchError(ContainSubstring("unknown preset")))
		Expect(filepath.Join(tmpDir, ".rapport")).NotTo(BeADirectory())
	})
})
