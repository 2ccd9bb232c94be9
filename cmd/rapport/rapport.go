// Package rapportcmder is the root of the rapport CLI.
package rapportcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/rapport/cmd/rapport/chat"
	configcmder "github.com/papercomputeco/rapport/cmd/rapport/config"
	initcmder "github.com/papercomputeco/rapport/cmd/rapport/init"
	servecmder "github.com/papercomputeco/rapport/cmd/rapport/serve"
	versioncmder "github.com/papercomputeco/rapport/cmd/version"
)

const rapportLongDesc string = `Rapport relays persona chats to LLM providers and remembers what users
tell each persona, encrypted per user.

Run services using:
  rapport serve relay    Run the chat relay
  rapport serve api      Run the API server
  rapport serve          Run both servers together

Talk to a persona:
  rapport chat --persona coach`

const rapportShortDesc string = "Rapport - persona chat relay with memory"

func NewRapportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rapport",
		Short:        rapportShortDesc,
		Long:         rapportLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.rapport or ~/.rapport)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
