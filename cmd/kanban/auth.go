package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/chepyr/go-kanban/internal/client"
	"github.com/spf13/cobra"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
}

// resolve reads the password from stdin when it was not passed as a flag.
func (f *credentialFlags) resolve(cmd *cobra.Command) error {
	if f.password != "" {
		return nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	f.password = strings.TrimRight(line, "\r\n")
	if f.password == "" {
		return errors.New("password is required")
	}
	return nil
}

func (a *app) registerCmd() *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.resolve(cmd); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			u, err := a.auth().SignUp(ctx, creds.email, creds.password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.resolve(cmd); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			sess, err := a.auth().SignIn(ctx, creds.email, creds.password)
			if err != nil {
				return err
			}
			if err := client.SaveSession(a.cfg.TokenFile, sess); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s until %s\n",
				sess.Email, sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := client.LoadSession(a.cfg.TokenFile)
			if errors.Is(err, client.ErrNoSession) {
				return errNotSignedIn
			}
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			u, err := a.auth().CurrentUser(ctx, sess.Token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth().SignOut(a.cfg.TokenFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
