package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/julia-updater/internal/config"
	"github.com/oshokin/julia-updater/internal/logger"
	"github.com/oshokin/julia-updater/internal/service/installer"
	"github.com/oshokin/julia-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel overrides the default info level.
	logLevel string

	errInvalidLogLevel = errors.New("invalid log level")

	// rootCmd installs or updates the stable release of the runtime.
	rootCmd = &cobra.Command{
		Use:   version.Program,
		Short: "Install or update the current stable Julia release",
		Long: "Resolve the current stable release from the downloads page, verify its archive against " +
			"the published checksum, extract it under the install root and point the stable link at it.\n" +
			"Without --config, " + config.DefaultConfigFilename + " is read when it exists.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errInvalidLogLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			options := &installer.Options{
				ConfigPath: configPath,
			}

			return installer.Run(cmd.Context(), options)
		},
	}
)

// Execute runs the julia-updater CLI and exits with the status matching the failure kind.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		logger.ErrorKV(ctx, installer.Describe(err), "error", err, "kind", installer.KindOf(err).String())
		os.Exit(installer.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
