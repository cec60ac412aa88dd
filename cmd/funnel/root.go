package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/funnel/internal/cli"
	"github.com/aretw0/funnel/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Funnel is a durable sales funnel engine for chat channels",
	Long: `Funnel walks visitors through funnels of messages, buttons, delays and
payments, one session per visitor and funnel.
It serves the funnels over HTTP, Discord and MCP, or plays them in the terminal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file (default $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().String("dir", "", "Directory containing funnel definitions (overrides the configuration)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the configuration and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if cmd.Flags().Changed("dir") {
		cfg.Definitions.Dir, _ = cmd.Flags().GetString("dir")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, cli.NewLogger(cfg), nil
}

// openStack loads the configuration and opens its storage.
func openStack(cmd *cobra.Command) (config.Config, *cli.Stack, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	st, err := cli.OpenStack(cfg)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, st, logger, nil
}
