package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appctx "invoicer/internal/core/context"
	"invoicer/internal/core/numerator"
)

// newTokenCommand mints a bearer token signed with the configured secret.
// Intended for operators and local testing; login flows live elsewhere.
func newTokenCommand() *cobra.Command {
	var (
		userID string
		email  string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user id and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToUpper(strings.TrimSpace(role))
			if !numerator.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			token, expires, err := a.jwtService().GenerateAccessToken(appctx.UserContext{
				UserID: userID,
				Email:  email,
				Role:   role,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id placed in the token")
	cmd.Flags().StringVar(&email, "email", "", "Email placed in the token")
	cmd.Flags().StringVar(&role, "role", numerator.RoleAdmin, "Role placed in the token")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
