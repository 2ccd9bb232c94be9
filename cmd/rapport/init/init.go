// Package initcmder provides the init command for initializing a local
// .rapport directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rapport/pkg/cliui"
	"github.com/papercomputeco/rapport/pkg/config"
)

const (
	dirName = ".rapport"
)

const initLongDesc string = `Initialize a new .rapport/ directory in the current working directory.

Creates a local .rapport/ directory that takes precedence over the default
~/.rapport/ directory for configuration, the sqlite database and saved chat
sessions. A config.toml seeded from the chosen preset is written unless one
already exists.

Available presets: ` + "anthropic, openai, openrouter, ollama" + `

Examples:
  rapport init
  rapport init --preset anthropic`

const initShortDesc string = "Initialize a local .rapport/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "ollama",
		"Provider preset for the starter config ("+strings.Join(config.ValidPresetNames(), ", ")+")")

	return cmd
}

func runInit(w io.Writer, preset string) error {
	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .rapport directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil:
		fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	err = cliui.Step(w, "Writing "+filepath.Base(cfger.GetTarget()), func() error {
		return cfger.SaveConfig(cfg)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized %s with the %s preset\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(dir),
		cliui.NameStyle.Render(strings.ToLower(preset)),
	)
	return nil
}
