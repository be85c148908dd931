package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/log"
)

var (
	flagConfigPath string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "wirechat",
	Short:         "Live chat widget client and development backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigPath, "config", "", "path to config.yaml (default ./config.yaml or $WIRECHAT_CONFIG_DEFAULT_PATH)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(), newChatCmd(), newTokenCmd(), newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration and applies command line overrides.
func loadConfig(bootstrap *zerolog.Logger, overrides config.Config) (config.Config, error) {
	cfg, path, err := config.Load(bootstrap, flagConfigPath)
	if err != nil {
		return cfg, err
	}
	if flagLogLevel != "" {
		overrides.LogLevel = flagLogLevel
	}
	cfg.UpdateFrom(overrides)
	bootstrap.Debug().Str("path", path).Msg("configuration loaded")
	return cfg, nil
}

func bootstrapLogger() *zerolog.Logger {
	level := flagLogLevel
	if level == "" {
		level = "info"
	}
	return log.New(level)
}
