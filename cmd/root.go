package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocrwatch/frigate-ocr/cmd/plates"
	"github.com/ocrwatch/frigate-ocr/cmd/run"
	"github.com/ocrwatch/frigate-ocr/cmd/showconfig"
	"github.com/ocrwatch/frigate-ocr/cmd/version"
	"github.com/ocrwatch/frigate-ocr/internal/buildinfo"
	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// by PersistentPreRunE before any subcommand runs.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "frigate-ocr",
		Short:         "License plate OCR for Frigate NVR events",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search the standard config paths)")

	versionCmd := version.Command(build)
	rootCmd.AddCommand(
		run.Command(settings, build),
		plates.Command(settings),
		showconfig.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, configFile, build)
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging and error reporting.
func initialize(settings *conf.Settings, configFile string, build *buildinfo.Context) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, build.Version(), settings.Sentry.Environment); err != nil {
			return err
		}
	}
	return nil
}
