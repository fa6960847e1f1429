package cmd

import (
	"errors"
	"fmt"

	"github.com/brokeshield/brokeshield/internal/config"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/service"
	"github.com/spf13/cobra"
)

// TokenCmd mints a bearer token signed with JWT_SECRET, for local use.
func TokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to issue tokens")
			}

			token, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry).
				GenerateJWT(model.Identity{UserID: args[0], Email: email})
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}
