package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gvsdash/internal/api"
	"gvsdash/internal/i18n"
	"gvsdash/internal/services/auth"
)

func (c *cli) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored session",
	}

	var email, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Long:  `Sign in with email and password. The password may also come from GVS_PASSWORD.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("GVS_PASSWORD")
			}
			if err := c.console.Auth.Login(cmd.Context(), auth.LoginRequest{Email: email, Password: password}); err != nil {
				return c.fail(err, i18n.MsgAuthFailed)
			}
			fmt.Fprintf(c.out, "Signed in as %s\n", email)
			return nil
		},
	}
	login.Flags().StringVar(&email, "email", "", "account email")
	login.Flags().StringVar(&password, "password", "", "account password")

	var reg auth.RegisterRequest
	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.console.Auth.Register(cmd.Context(), reg)
			if err != nil {
				return c.fail(err, i18n.MsgRegisterFailed)
			}
			return c.print(user, func(w io.Writer) {
				fmt.Fprintf(w, "Registered %s, sign in to continue\n", user.Email)
			})
		},
	}
	register.Flags().StringVar(&reg.Email, "email", "", "account email")
	register.Flags().StringVar(&reg.Password, "password", "", "password, at least 8 characters")
	register.Flags().StringVar(&reg.ConfirmPassword, "confirm", "", "password confirmation")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.console.Auth.Logout(cmd.Context()); err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}
			fmt.Fprintln(c.out, "Signed out")
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !c.console.Auth.IsAuthenticated(ctx) {
				return c.fail(api.ErrUnauthorized, i18n.MsgSessionExpired)
			}
			user, err := c.console.Auth.Me(ctx)
			if err != nil {
				return c.fail(err, i18n.MsgLoadFailed)
			}
			exp, hasExp := c.console.Sessions.ExpiresAt(ctx)
			return c.print(user, func(w io.Writer) {
				fmt.Fprintf(w, "%s (id %s)\n", user.Email, user.ID)
				if hasExp {
					fmt.Fprintf(w, "Token expires %s\n", exp.Local().Format(time.RFC3339))
				}
			})
		},
	}

	cmd.AddCommand(login, register, logout, whoami)
	return cmd
}
