package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tansive/unifictl/internal/common/logtrace"
	"github.com/tansive/unifictl/internal/unifi"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

// newRootCmd builds the command tree. Global flag values are reset on every call.
func newRootCmd() *cobra.Command {
	jsonOutput = false
	configFile = ""
	config = nil

	rootCmd := &cobra.Command{
		Use:   "unifictl [command] [flags]",
		Short: "unifictl - A command line client for UniFi network controllers",
		Long: `unifictl is a command line client for the REST API of a UniFi network controller.
It logs in with the configured credentials, keeps the session for the duration of a
command and logs in again when the controller reports the session as expired.

Examples:
  # Configure the controller
  unifictl config create --url 192.168.1.2:8443 --username admin --password secret

  # List connected clients of the configured site
  unifictl req /api/s/{site}/stat/sta

  # Restart a device
  unifictl req /api/s/{site}/cmd/devmgr --set cmd=restart --set mac=00:11:22:33:44:55

  # Wait for the controller to come up
  unifictl status --wait 2m`,
		PersistentPreRunE: preRunHandlePersistents,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newReqCmd())
	rootCmd.AddCommand(newStatusCmd())

	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			kv := map[string]string{
				"error": err.Error(),
			}
			printJSON(os.Stdout, kv)
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents loads the configuration and sets up logging before
// commands that talk to the controller.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" || c.Name() == "help" {
			return nil
		}
	}

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if err := LoadConfig(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found. Configure unifictl with \"unifictl config create\" first")
		}
		return err
	}

	cfg := GetConfig()
	if cfg.Debug || cfg.DebugNet {
		logtrace.Configure(logtrace.LogOptions{Level: "debug", Console: true, Output: cmd.ErrOrStderr()})
	}
	return nil
}

// newClient creates a controller client from the loaded configuration
func newClient() (*unifi.Client, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}
	return unifi.New(cfg.ClientOptions())
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of unifictl",
		Run: func(cmd *cobra.Command, args []string) {
			configPath, err := resolveConfigPath()
			if err != nil {
				configPath = "unknown"
			}

			if jsonOutput {
				kv := map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				}
				printJSON(cmd.OutOrStdout(), kv)
			} else {
				cmd.Printf("unifictl %s\n", getCLIVersion())
				cmd.Printf("Config file: %s\n", configPath)
			}
		},
	}
}

// printJSON prints the given value as indented JSON
func printJSON(w io.Writer, data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
