package servecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rapport/pkg/config"
)

const apiLongDesc string = `Run the rapport API server for reading conversation history, managing
stored memory facts, and serving the fact_recall MCP tool at /mcp.`

const apiShortDesc string = "Run the rapport API server"

func newAPICmd() *cobra.Command {
	opts := &commonOpts{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd, append([]string{config.FlagAPIListenStandalone}, storageFlagKeys...))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAPI(cmd.Context(), opts)
		},
	}

	var listen string
	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListenStandalone, &listen)
	addStorageFlags(cmd)
	addLogFlags(cmd, opts)

	return cmd
}

func runAPI(ctx context.Context, opts *commonOpts) error {
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

	server, err := st.newAPIServer()
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer func() {
		if err := server.Shutdown(); err != nil {
			opts.logger.Error("shutting down API server", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	return waitForShutdown(opts.logger, errChan)
}
