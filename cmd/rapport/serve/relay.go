package servecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rapport/pkg/config"
	"github.com/papercomputeco/rapport/relay"
)

const relayLongDesc string = `Run the chat relay.

The relay streams persona replies from the configured LLM providers as
server-sent events, then persists each exchange and extracts memory facts
in the background.`

const relayShortDesc string = "Run the rapport chat relay"

func newRelayCmd() *cobra.Command {
	opts := &commonOpts{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			keys := append([]string{config.FlagRelayListenStandalone}, relayFlagKeys...)
			return opts.load(cmd, append(keys, storageFlagKeys...))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd.Context(), opts)
		},
	}

	var listen string
	config.AddStringFlag(cmd, serveFlags, config.FlagRelayListenStandalone, &listen)
	addRelayFlags(cmd)
	addStorageFlags(cmd)
	addLogFlags(cmd, opts)

	return cmd
}

func runRelay(ctx context.Context, opts *commonOpts) error {
	if ctx == nil {
		ctx = context.Background()
	}

	defer opts.closeLog()

	st, err := opts.buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	config.WatchPersonas(opts.viper, st.catalog, opts.logger)

	r, err := relay.New(st.relayConfig(), opts.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			opts.logger.Error("closing relay", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	return waitForShutdown(opts.logger, errChan)
}
