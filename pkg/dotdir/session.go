package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/rapport/pkg/llm"
)

const sessionDir = "sessions"

// Session is a saved chat with one persona, replayed as history when
// "rapport chat" resumes.
type Session struct {
	PersonaID      string        `json:"persona_id"`
	ConversationID string        `json:"conversation_id"`
	Messages       []llm.Message `json:"messages"`
}

// LoadSession returns the saved session for personaID, or nil when there
// is none.
func (m *Manager) LoadSession(overrideDir, personaID string) (*Session, error) {
	path, err := m.sessionPath(overrideDir, personaID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return s, nil
}

// SaveSession persists s under its persona ID.
func (m *Manager) SaveSession(overrideDir string, s *Session) error {
	if s == nil {
		return errors.New("cannot save nil session")
	}

	path, err := m.sessionPath(overrideDir, s.PersonaID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	// Sessions hold plaintext chat history.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// ClearSession removes the saved session for personaID. Missing sessions
// are not an error.
func (m *Manager) ClearSession(overrideDir, personaID string) error {
	path, err := m.sessionPath(overrideDir, personaID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

func (m *Manager) sessionPath(overrideDir, personaID string) (string, error) {
	if personaID == "" || strings.ContainsAny(personaID, `/\`) || personaID == "." || personaID == ".." {
		return "", fmt.Errorf("invalid persona id %q", personaID)
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionDir, personaID+".json"), nil
}
