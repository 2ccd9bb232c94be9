// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/rapport/pkg/cliui"
	"github.com/papercomputeco/rapport/pkg/config"
	"github.com/papercomputeco/rapport/pkg/logger"
	"github.com/papercomputeco/rapport/relay"
)

// serveFlags is shared by "rapport serve" and its subcommands.
var serveFlags = config.FlagSet{
	config.FlagRelayListen:           {Name: "relay-listen", Shorthand: "r", ViperKey: "relay.listen", Description: "Address for relay to listen on"},
	config.FlagAPIListen:             {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	config.FlagRelayListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for relay to listen on"},
	config.FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	config.FlagStorageDriver:         {Name: "storage-driver", ViperKey: "storage.driver", Description: "Storage driver (memory, sqlite, postgres)"},
	config.FlagSQLite:                {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database, relative paths resolve inside the .rapport/ directory"},
	config.FlagPostgresDSN:           {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "Postgres connection string"},
	config.FlagWorkers:               {Name: "workers", Shorthand: "w", ViperKey: "relay.workers", Description: "Post-processing workers"},
	config.FlagJobTimeout:            {Name: "job-timeout", ViperKey: "relay.job_timeout", Description: "Deadline for persisting and extracting one exchange"},
	config.FlagMemory:                {Name: "memory", ViperKey: "memory.enabled", Description: "Extract memory facts and inject them into persona prompts"},
}

// relayFlagKeys are bound by every command that runs the relay.
var relayFlagKeys = []string{config.FlagWorkers, config.FlagJobTimeout, config.FlagMemory}

var storageFlagKeys = []string{config.FlagStorageDriver, config.FlagSQLite, config.FlagPostgresDSN}

// commonOpts is the state every serve command resolves in PreRunE.
type commonOpts struct {
	configDir string
	debug     bool
	jsonLogs  bool
	logFile   string
	logLevel  string
	logSource bool

	// out receives startup progress; stdout receives log records.
	out    io.Writer
	stdout io.Writer

	viper   *viper.Viper
	config  *config.Config
	logger  *slog.Logger
	logSink *os.File
}

// load resolves flags, env and config file into a Config.
func (o *commonOpts) load(cmd *cobra.Command, flagKeys []string) error {
	o.configDir, _ = cmd.Flags().GetString("config-dir")

	var err error
	o.debug, err = cmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("could not get debug flag: %w", err)
	}

	o.viper, err = config.InitViper(o.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(o.viper, cmd, serveFlags, flagKeys)

	o.config, err = config.FromViper(o.viper)
	if err != nil {
		return err
	}

	o.out = cmd.ErrOrStderr()
	o.stdout = cmd.OutOrStdout()
	o.logger, err = o.newLogger()
	return err
}

// newLogger builds the serve logger. Records go to stdout, pretty unless
// JSON was asked for, and are also appended as JSON to the log file when
// one is set.
func (o *commonOpts) newLogger() (*slog.Logger, error) {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	if o.logLevel != "" {
		if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
		}
	}

	stdout := o.stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	common := []logger.Option{
		logger.WithLevel(level),
		logger.WithSource(o.logSource),
		logger.WithRedact(logger.SensitiveKeys...),
	}

	if o.logFile == "" {
		return logger.New(append(common,
			logger.WithWriter(stdout),
			logger.WithJSON(o.jsonLogs),
			logger.WithPretty(!o.jsonLogs),
		)...), nil
	}

	f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	o.logSink = f

	// Both sides are JSON: one handler can write to both.
	if o.jsonLogs {
		return logger.New(append(common, logger.WithWriters(stdout, f), logger.WithJSON(true))...), nil
	}

	return logger.Multi(
		logger.New(append(common, logger.WithWriter(stdout), logger.WithPretty(true))...),
		logger.New(append(common, logger.WithWriter(f), logger.WithJSON(true))...),
	), nil
}

// closeLog closes the log file, if any.
func (o *commonOpts) closeLog() {
	if o.logSink != nil {
		_ = o.logSink.Close()
		o.logSink = nil
	}
}

// step runs fn behind a spinner on interactive output. JSON output gets no
// spinner so the stream stays machine-readable.
func (o *commonOpts) step(msg string, fn func() error) error {
	if o.jsonLogs || o.out == nil {
		return fn()
	}
	return cliui.Step(o.out, msg, fn)
}

// buildStack constructs the shared stack under a startup step.
func (o *commonOpts) buildStack(ctx context.Context) (*stack, error) {
	var st *stack
	err := o.step("Starting rapport stack", func() error {
		var err error
		st, err = newStack(ctx, o.config, o.configDir, o.logger)
		return err
	})
	return st, err
}

func addRelayFlags(cmd *cobra.Command) {
	var workers uint
	var jobTimeout string
	var memory bool
	config.AddUintFlag(cmd, serveFlags, config.FlagWorkers, &workers)
	config.AddStringFlag(cmd, serveFlags, config.FlagJobTimeout, &jobTimeout)
	config.AddBoolFlag(cmd, serveFlags, config.FlagMemory, &memory)
}

func addStorageFlags(cmd *cobra.Command) {
	var driver, sqlitePath, dsn string
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageDriver, &driver)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgresDSN, &dsn)
}

func addLogFlags(cmd *cobra.Command, o *commonOpts) {
	cmd.Flags().BoolVar(&o.jsonLogs, "json-logs", false, "Emit JSON logs instead of colorized text")
	cmd.Flags().StringVar(&o.logFile, "log-file", "", "Also append JSON logs to this file")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "", "Minimum log level (debug, info, warn, error); overrides --debug")
	cmd.Flags().BoolVar(&o.logSource, "log-source", false, "Include the source file and line in log records")
}

// waitForShutdown blocks until a server fails or the process is signalled.
func waitForShutdown(log *slog.Logger, errChan <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

const serveLongDesc string = `Run rapport services.

Use subcommands to run individual services or all services together:
  rapport serve          Run both relay and API server together
  rapport serve relay    Run just the chat relay
  rapport serve api      Run just the API server

Personas are read from the [[personas]] tables of config.toml and reloaded
whenever the file changes.`

const serveShortDesc string = "Run rapport services"

func NewServeCmd() *cobra.Command {
	opts := &commonOpts{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			keys := []string{config.FlagRelayListen, config.FlagAPIListen}
			keys = append(keys, relayFlagKeys...)
			return opts.load(cmd, append(keys, storageFlagKeys...))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	var relayListen, apiListen string
	config.AddStringFlag(cmd, serveFlags, config.FlagRelayListen, &relayListen)
	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &apiListen)
	addRelayFlags(cmd)
	addStorageFlags(cmd)
	addLogFlags(cmd, opts)

	cmd.AddCommand(newRelayCmd())
	cmd.AddCommand(newAPICmd())

	return cmd
}

func runServe(ctx context.Context, opts *commonOpts) error {
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

	apiServer, err := st.newAPIServer()
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer func() {
		if err := apiServer.Shutdown(); err != nil {
			opts.logger.Error("shutting down API server", "error", err)
		}
	}()

	errChan := make(chan error, 2)

	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	return waitForShutdown(opts.logger, errChan)
}
