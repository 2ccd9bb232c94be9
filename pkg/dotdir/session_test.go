package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/dotdir"
	"github.com/papercomputeco/rapport/pkg/llm"
)

var _ = Describe("dotdir.Manager sessions", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-session-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns nil when no session exists", func() {
		s, err := m.LoadSession(tmpDir, "coach")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNil())
	})

	It("saves and loads a session per persona", func() {
		saved := &dotdir.Session{
			PersonaID:      "coach",
			ConversationID: "conv-1",
			Messages: []llm.Message{
				llm.NewUserMessage("I want to run a marathon"),
				llm.NewAssistantMessage("Great goal!"),
			},
		}
		Expect(m.SaveSession(tmpDir, saved)).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, "sessions", "coach.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

		loaded, err := m.LoadSession(tmpDir, "coach")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(saved))

		other, err := m.LoadSession(tmpDir, "chef")
		Expect(err).NotTo(HaveOccurred())
		Expect(other).To(BeNil())
	})

	It("clears a session and tolerates clearing twice", func() {
		Expect(m.SaveSession(tmpDir, &dotdir.Session{PersonaID: "coach"})).To(Succeed())
		Expect(m.ClearSession(tmpDir, "coach")).To(Succeed())
		Expect(m.ClearSession(tmpDir, "coach")).To(Succeed())

		s, err := m.LoadSession(tmpDir, "coach")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNil())
	})

	It("rejects persona ids that escape the session dir", func() {
		_, err := m.LoadSession(tmpDir, "../config")
		Expect(err).To(MatchError(ContainSubstring("invalid persona id")))
		Expect(m.SaveSession(tmpDir, &dotdir.Session{PersonaID: ""})).NotTo(Succeed())
	})

	It("returns error for nil session", func() {
		Expect(m.SaveSession(tmpDir, nil)).To(MatchError(ContainSubstring("nil session")))
	})

	It("reports corrupt session files", func() {
		Expect(os.MkdirAll(filepath.Join(tmpDir, "sessions"), 0o700)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(tmpDir, "sessions", "coach.json"), []byte("{"), 0o600)).To(Succeed())

		_, err := m.LoadSession(tmpDir, "coach")
		Expect(err).To(MatchError(ContainSubstring("parsing session")))
	})
})
