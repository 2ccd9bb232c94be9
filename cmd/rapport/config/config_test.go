package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/rapport/cmd/rapport/config"
	"github.com/papercomputeco/rapport/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		subcommands := []string{}
		for _, sub := range cmd.Commands() {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "rapport-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .rapport dir makes the manager pick tmpDir.
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".rapport"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("writes the value to config.toml", func() {
			Expect(run("set", "storage.driver", "memory")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("storage.driver"))

			cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".rapport"))
			Expect(err).NotTo(HaveOccurred())
			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Driver).To(Equal("memory"))
		})

		It("masks secrets in its output", func() {
			Expect(run("set", "providers.openai_api_key", "sk-abcdef1234")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("****1234"))
			Expect(out.String()).NotTo(ContainSubstring("sk-abcdef1234"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "proxy.provider", "anthropic")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "relay.listen")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})

		It("rejects invalid numbers", func() {
			Expect(run("set", "relay.workers", "not-a-number")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "relay.listen", ":9000")).To(Succeed())
			out.Reset()

			Expect(run("get", "relay.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(":9000"))
		})

		It("masks secrets unless revealed", func() {
			Expect(run("set", "encryption.secret", "correct-horse")).To(Succeed())
			out.Reset()

			Expect(run("get", "encryption.secret")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("correct-horse"))

			out.Reset()
			Expect(run("get", "encryption.secret", "--reveal")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("correct-horse"))
		})

		It("reports unset keys", func() {
			Expect(run("get", "storage.postgres_dsn")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys and missing arguments", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists defaults when no config exists", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("relay.listen"))
			Expect(out.String()).To(ContainSubstring("No personas configured."))
		})

		It("lists personas from the file", func() {
			data := `[[personas]]
id = "coach"
provider = "ollama"
model = "llama3.2"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, ".rapport", "config.toml"), []byte(data), 0o600)).To(Succeed())

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("coach"))
			Expect(out.String()).To(ContainSubstring("ollama/llama3.2"))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
