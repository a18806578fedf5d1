package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/marketplace"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/pkg/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Long: `Sign in with email and password. Missing values are prompted for; the
password is read without echo.

Examples:
bnb login --email guest@bnb.test`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd)
			email, err := p.flagOrAsk("email", "Email", false)
			if err != nil {
				return err
			}
			password, err := p.flagOrAsk("password", "Password", true)
			if err != nil {
				return err
			}

			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				s, err := c.Session.Login(ctx, session.Credentials{Email: email, Password: password})
				if err != nil {
					return err
				}
				return render(cmd, s, func() string {
					return signedIn(s.Identity)
				})
			})
		},
	}
	cmd.Flags().StringP("email", "e", "", "Account email")
	cmd.Flags().StringP("password", "p", "", "Account password (prompted when omitted)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd)
			username, err := p.flagOrAsk("username", "Username", false)
			if err != nil {
				return err
			}
			email, err := p.flagOrAsk("email", "Email", false)
			if err != nil {
				return err
			}
			password, err := p.flagOrAsk("password", "Password", true)
			if err != nil {
				return err
			}
			roleFlag, _ := cmd.Flags().GetString("role")
			role, ok := models.ParseRole(roleFlag)
			if !ok || role == models.RoleAdmin {
				return errors.InvalidInput(fmt.Sprintf("--role must be guest or host, got %q", roleFlag))
			}

			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				s, err := c.Session.Register(ctx, models.RegisterRequest{
					Username: username,
					Email:    email,
					Password: password,
					Role:     role,
				})
				if err != nil {
					return err
				}
				return render(cmd, s, func() string {
					return signedIn(s.Identity)
				})
			})
		},
	}
	cmd.Flags().StringP("username", "u", "", "Display name")
	cmd.Flags().StringP("email", "e", "", "Account email")
	cmd.Flags().StringP("password", "p", "", "Account password (prompted when omitted)")
	cmd.Flags().String("role", string(models.RoleGuest), "guest or host")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				if !c.Session.Authenticated() {
					return done(cmd, "Not signed in")
				}
				c.Logout(ctx)
				return done(cmd, "Signed out")
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				if refresh, _ := cmd.Flags().GetBool("refresh"); refresh && c.Session.Authenticated() {
					if _, err := c.Session.RefreshIdentity(ctx); err != nil {
						return err
					}
				}
				s, ok := c.Session.Current()
				if !ok {
					_, err := c.Identity()
					return err
				}
				return render(cmd, s, func() string {
					rows := [][2]string{
						{"ID", fmt.Sprint(s.Identity.ID)},
						{"Name", s.Identity.DisplayName},
						{"Email", s.Identity.Email},
						{"Role", string(s.Identity.Role)},
					}
					if !s.ExpiresAt.IsZero() {
						rows = append(rows, [2]string{"Expires", s.ExpiresAt.Local().Format(time.RFC1123)})
					}
					return cli.StatusTable(rows)
				})
			})
		},
	}
	cmd.Flags().Bool("refresh", false, "Reload the identity from the server")
	return cmd
}

func signedIn(id models.Identity) string {
	return cli.DefaultTheme.Success.Render("✓ ") +
		fmt.Sprintf("Signed in as %s (%s)", id.DisplayName, id.Role)
}
