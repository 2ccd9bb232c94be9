// Package dotdir manages the .rapport/ and ~/.rapport directories that hold
// the config file, the default sqlite database and saved chat sessions.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the rapport directory.
	dirName = ".rapport"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .rapport/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.rapport/ dir
//  3. Home ~/.rapport/ dir, created if missing
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating rapport directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Resolve anchors a relative path inside the target directory. Absolute
// paths are returned unchanged.
func (m *Manager) Resolve(overrideDir, path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

// localDirExists checks whether a .rapport/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
