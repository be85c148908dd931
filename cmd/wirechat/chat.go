package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-widget/internal/auth"
	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/log"
	"github.com/vovakirdan/wirechat-widget/internal/settings"
	"github.com/vovakirdan/wirechat-widget/internal/telemetry"
	"github.com/vovakirdan/wirechat-widget/internal/transport/ws"
	"github.com/vovakirdan/wirechat-widget/internal/tui"
	"github.com/vovakirdan/wirechat-widget/internal/widget"
)

func newChatCmd() *cobra.Command {
	var (
		overrides   config.Config
		token       string
		logFile     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat widget in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(log.Nop(), overrides)
			if err != nil {
				return err
			}

			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				out = f
			}
			logger := log.NewWithWriter(cfg.LogLevel, out)

			var initial *identity.Identity
			if token == "" {
				token = os.Getenv("WIRECHAT_TOKEN")
			}
			if token != "" {
				id, err := auth.IdentityFromToken(token)
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				initial = &id
			}
			session := identity.NewSession(initial)

			chatSettings, err := settings.Load(cfg.Client.SettingsPath)
			if err != nil {
				logger.Warn().Err(err).Msg("using default chat settings")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			telemetry.Init()
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: telemetry.Handler()}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Warn().Err(err).Msg("metrics server stopped")
					}
				}()
				defer srv.Close()
			}

			prompter := tui.NewPrompter()
			w := widget.New(widget.Options{
				Config:   cfg.Client,
				Dialer:   ws.NewDialer(),
				Identity: session,
				Confirm:  prompter,
				Logger:   logger,
			})
			go w.Run(ctx)

			model := tui.New(ctx, tui.Options{
				Widget:       w,
				Session:      session,
				Prompter:     prompter,
				Settings:     chatSettings,
				SettingsPath: cfg.Client.SettingsPath,
			})
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("run chat shell: %w", err)
			}

			stop()
			<-w.Done()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&overrides.Client.ServerURL, "server-url", "", "websocket endpoint of the chat backend")
	flags.StringVar(&overrides.Client.Environment, "env", "", "environment (development or production)")
	flags.StringVar(&token, "token", "", "chat token (or WIRECHAT_TOKEN); anonymous when empty")
	flags.StringVar(&logFile, "log-file", "", "write logs to this file instead of discarding them")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "expose client metrics on this address")
	return cmd
}
