// Package configcmder provides the config command for managing persistent
// rapport configuration stored in the .rapport/ directory.
package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rapport/pkg/cliui"
	"github.com/papercomputeco/rapport/pkg/config"
)

const configLongDesc string = `Manage persistent rapport configuration.

Configuration is stored as config.toml in the .rapport/ directory and provides
default values for command flags. CLI flags and RAPPORT_ environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example
relay.listen, storage.driver, memory.extraction_model or encryption.secret.
Run "rapport config list" to see every key. Personas are edited as
[[personas]] tables in config.toml directly.

Use subcommands to get, set, or list configuration values:
  rapport config set <key> <value>    Set a configuration value
  rapport config get <key>            Get a configuration value
  rapport config list                 List all configuration values

Examples:
  rapport config set storage.driver postgres
  rapport config set memory.extraction_model llama3.2
  rapport config get relay.listen
  rapport config list`

const configShortDesc string = "Manage persistent rapport configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}

// display masks secret values.
func display(key, value string) string {
	if config.IsSecretConfigKey(key) {
		return cliui.MaskSecret(value)
	}
	return value
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
