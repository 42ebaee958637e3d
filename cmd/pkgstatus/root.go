package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/daimoniac/pkgstatus/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pkgstatus",
	Short: "Build status aggregation for a build-farm console",
	Long: `pkgstatus assembles the package status, monitor and summary views of
build service projects. It caches backend answers, serves the views over
HTTP and can export status snapshots to S3.

Settings come from the environment (a .env file is honoured) and from the
YAML file named by PKGSTATUS_CONFIG or --config.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $PKGSTATUS_CONFIG or pkgstatus.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides LOG_LEVEL")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv("PKGSTATUS_CONFIG", configPath); err != nil {
			return nil, fmt.Errorf("setting config path: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
