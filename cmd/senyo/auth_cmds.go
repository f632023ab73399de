package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danaasamuel2023/senyo-sub001/client"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/spf13/cobra"
)

const passwordEnvVar = "SENYO_PASSWORD"

func loginCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a.init(out)

			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				password = os.Getenv(passwordEnvVar)
			}
			if password == "" {
				var err error
				if password, err = promptLine(cmd.InOrStdin(), out, "Password: "); err != nil {
					return err
				}
			}

			user, err := a.client.Login(cmd.Context(), email, password, remember)
			var httpErr *client.HTTPError
			if errors.As(err, &httpErr) {
				return errors.New(httpErr.Message)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Signed in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (or set "+passwordEnvVar+")")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the session alive past the idle timeout")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a.init(out)
			a.manager.Logout(cmd.Context(), a.cfg.GetSignInPath())
			a.manager.WaitForLogoutNotifications()
			fmt.Fprintln(out, "Signed out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return a.guarded(cmd.Context(), out, func(ctx context.Context, user *users.Profile) error {
				fmt.Fprintf(out, "%s <%s>\nrole:    %s\nwallet:  GHS %.2f\n", user.Name, user.Email, user.Role, user.WalletBalance)
				if expiry, ok := a.manager.TokenExpiry(); ok {
					fmt.Fprintf(out, "token expires: %s\n", expiry.Local().Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}

func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
