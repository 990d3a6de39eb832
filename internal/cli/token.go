package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/config"
)

// NewTokenCmd mints a bearer token for local testing against a running server.
func NewTokenCmd(configPath *string) *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed token for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tokens, err := newTokens(cfg)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(actor, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id to put in the token subject")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newTokens(cfg config.Config) (*auth.Tokens, error) {
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret not configured")
	}
	issuer := cfg.Auth.Issuer
	if issuer == "" {
		issuer = "quiz-engine"
	}
	return auth.NewTokens(cfg.Auth.Secret, issuer, config.TTLDuration(cfg.Auth.TTL, 24*time.Hour)), nil
}
