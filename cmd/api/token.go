package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"medication-adherence/internal/adapters/auth/jwtauth"
	"medication-adherence/internal/platform/config"
)

func tokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 bearer token signed with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			tok, err := jwtauth.Sign(jwtauth.Options{
				Secret:   cfg.JWTSecret,
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
			}, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "ID de usuario (sub)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Vigencia del token")
	return cmd
}
