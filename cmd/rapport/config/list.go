package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rapport/pkg/cliui"
	"github.com/papercomputeco/rapport/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .rapport/ directory, followed by the
configured personas. Secret values are masked.

Examples:
  rapport config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger)

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		padded := fmt.Sprintf("%-*s", maxLen, key)
		if value == "" {
			fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(padded), cliui.DimStyle.Render("<not set>"))
		} else {
			fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(padded), cliui.ValueStyle.Render(display(key, value)))
		}
	}

	fmt.Fprintln(w)
	if len(cfg.Personas) == 0 {
		fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render("No personas configured."))
		return nil
	}

	for _, p := range cfg.Personas {
		fmt.Fprintf(w, "  %s %s\n",
			cliui.NameStyle.Render(p.ID),
			cliui.DimStyle.Render(fmt.Sprintf("%s/%s", p.ProviderID, p.ModelID)),
		)
	}
	fmt.Fprintln(w)

	return nil
}
