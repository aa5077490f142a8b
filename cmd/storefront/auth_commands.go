package main

import (
	"bufio"
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/go-storefront-gateway/internal/errors"
	"github.com/jrsteele09/go-storefront-gateway/session"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var creds session.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the realm's tokens",
		Long: `Signs in against /auth/login (user realm) or /admin/login (admin realm).
The password is read from stdin when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Password == "" {
				password, err := readLine(cmd, "Password: ")
				if err != nil {
					return err
				}
				creds.Password = password
			}

			ctrl := a.controller()
			defer ctrl.Close()
			if !ctrl.Login(cmd.Context(), creds) {
				return apperrors.Wrapf(apperrors.ErrInvalidCredentials, "signing in as %s", creds.Email)
			}
			printState(cmd.OutOrStdout(), string(a.realm), ctrl.State())
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the realm's tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.controller(session.WithNavigator(session.NavigatorFunc(func(string) {})))
			defer ctrl.Close()
			ctrl.Logout(cmd.Context())
			printState(cmd.OutOrStdout(), string(a.realm), ctrl.State())
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the stored session and show who it belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.controller(session.WithNotifier(quietNotifier{}))
			defer ctrl.Close()
			ctrl.Mount(cmd.Context())
			printState(cmd.OutOrStdout(), string(a.realm), ctrl.State())
			return nil
		},
	}
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimSpace(line), nil
}
