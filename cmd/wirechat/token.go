package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-widget/internal/app"
	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/identity"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token <name>",
		Short: "Mint a chat token signed with the configured backend secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(bootstrapLogger(), config.Config{})
			if err != nil {
				return err
			}
			id, err := app.NewAuthService(&cfg.Server).Issue(userID, args[0], identity.ParseRole(role))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id.Token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "user id (generated when empty)")
	cmd.Flags().StringVar(&role, "role", string(identity.RoleUser), "role: user or admin")
	return cmd
}
