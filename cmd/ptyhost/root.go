package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ptyhost/ptyhost/internal/config"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Version info (set at build time)
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "ptyhost",
	Short: "Run programs on pseudo-terminals",
	Long: `ptyhost starts programs on pseudo-terminals and streams their output.

"ptyhost serve" exposes sessions over a REST and WebSocket API.
"ptyhost run" runs one program attached to the current terminal.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultConfigFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json)")
}

// loadConfig layers flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	applyServeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// exitError carries a child's exit status out of a command.
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func asExit(err error, target *exitError) bool {
	return errors.As(err, target)
}
