package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-widget/internal/app"
	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/log"
)

func newServeCmd() *cobra.Command {
	var overrides config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development chat backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(bootstrapLogger(), overrides)
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg.Server, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&overrides.Server.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.Server.DatabasePath, "db", "", "sqlite database path")
	flags.DurationVar(&overrides.Server.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.Server.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	return cmd
}
