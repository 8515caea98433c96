package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"docchat/internal/pkg/jwtutil"
)

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Issue an API token signed with the configured secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

var tokenTTL time.Duration

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to auth.jwt_expire_minute)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if appConfig == nil {
		return errors.New("configuration not loaded")
	}
	ttl := tokenTTL
	if ttl == 0 {
		ttl = time.Duration(appConfig.Auth.JWTExpireMinute) * time.Minute
	}
	token, err := jwtutil.IssueToken(appConfig.Auth.JWTSecret, args[0], ttl)
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
