package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/config"
	"github.com/mohammed-shakir/dggs-stac-export/internal/logger"
	"github.com/mohammed-shakir/dggs-stac-export/internal/metrics"
)

var (
	configPath string
	outputDir  string
	verbose    bool

	cfg     config.Config
	appLog  *slog.Logger
	metricP *metrics.Provider
)

var rootCmd = &cobra.Command{
	Use:           "copexport",
	Short:         "Export GIS layers as a STAC COP package enriched with DGGS coverage",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cmd.Flags().Changed("output-dir") {
			cfg.Export.OutputDir = outputDir
		}
		if verbose {
			cfg.LogLevel = "debug"
		}

		zl := logger.Build(logger.Config{
			Level:   cfg.LogLevel,
			Console: cfg.LogConsole,
			Service: "copexport",
			Version: Version,
			Command: cmd.Name(),
		}, os.Stderr)
		appLog = logger.NewSlog(&zl)

		metricP, err = metrics.Init(metrics.Config{Enabled: cfg.MetricsEnabled, Version: Version})
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "copexport.toml", "Path to configuration file (optional)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", ".", "Directory receiving the STAC export and archive")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}
