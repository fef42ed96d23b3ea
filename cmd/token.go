package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	jwtpkg "clinicflow/drafthub/pkg/jwt"
)

var flagSubject string

// tokenCmd mints an access token for local development against the API.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.SigningKey == "" {
			return fmt.Errorf("jwt.signing_key is not configured")
		}

		userID := uuid.New()
		if flagSubject != "" {
			if userID, err = uuid.Parse(flagSubject); err != nil {
				return fmt.Errorf("invalid --sub: %w", err)
			}
		}

		m := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
		tok, err := m.GenerateAccessToken(userID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagSubject, "sub", "", "user UUID to embed as subject (random when empty)")
}
