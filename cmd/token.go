package cmd

import (
	"fmt"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/auth"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	tokenUserID   string
	tokenUsername string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage report API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a report API token for a chat user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		if err := cfg.Security.Validate(); err != nil {
			return fmt.Errorf("security config: %w", err)
		}

		policy, _ := buildPolicy(cfg.Access, logger.Discard())
		gen := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.AccessTokenDuration)
		svc := auth.NewService(gen, policy, logger.Discard())

		tokens, err := svc.IssueToken(access.RequesterIdentity{ID: tokenUserID, Username: tokenUsername})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires at %s\n", tokens.AccessToken, tokens.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenUserID, "id", "", "telegram user id")
	tokenIssueCmd.Flags().StringVar(&tokenUsername, "username", "", "telegram username")

	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
