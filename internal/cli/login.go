package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check the credentials against the controller",
		Long: `Log in to the controller with the configured credentials, or the ones given as flags.
Sessions are not kept between invocations, so this is a credential check. Other
commands log in on their own.

Example:
  unifictl login
  unifictl login --username admin --password secret`,
		RunE: runLogin,
	}

	cmd.Flags().String("username", "", "Username, overrides the config file")
	cmd.Flags().String("password", "", "Password, overrides the config file")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	env, err := client.Login(cmd.Context(), username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		printJSON(out, map[string]any{
			"result": 1,
			"meta":   env.Meta,
		})
	} else {
		okLabel.Fprintln(out, "✓ Login successful")
		fmt.Fprintf(out, "Controller: %s\n", GetConfig().ControllerURL)
	}
	return nil
}

// newLogoutCmd creates and returns a new logout command
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log in and end the session on the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if _, err := client.Login(cmd.Context(), "", ""); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if _, err := client.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, map[string]int{"result": 1})
			} else {
				okLabel.Fprintln(out, "✓ Logged out")
			}
			return nil
		},
	}
}
