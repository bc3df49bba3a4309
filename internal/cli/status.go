package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tansive/unifictl/internal/unifi"
)

const statusPath = "/status"

// StatusResponse is the meta block of the controller's /status endpoint
type StatusResponse struct {
	Up            bool   `json:"up"`
	ServerVersion string `json:"server_version"`
	UUID          string `json:"uuid,omitempty"`
}

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Get controller status",
		Long: `Get controller status. /status does not require a session, so no login is made.
With --wait the probe is repeated until the controller answers or the duration runs out,
which is useful right after a controller restart.

Examples:
  # Get controller status
  unifictl status

  # Wait up to two minutes for the controller
  unifictl status --wait 2m -j`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getStatus(cmd, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep probing until the controller answers, up to this long")
	return cmd
}

// getStatus handles retrieving controller status information
func getStatus(cmd *cobra.Command, wait time.Duration) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	status, err := probeStatus(cmd.Context(), client, wait)
	out := cmd.OutOrStdout()
	if err != nil {
		if jsonOutput {
			printJSON(out, map[string]string{
				"version_cli": getCLIVersion(),
				"error":       "Unable to connect to controller: " + err.Error(),
			})
		} else {
			fmt.Fprintf(out, "unifictl %s\n", getCLIVersion())
			errorLabel.Fprintln(out, "Error: Unable to connect to controller: "+err.Error())
		}
		return ErrAlreadyHandled
	}

	if jsonOutput {
		printJSON(out, map[string]any{
			"result":      1,
			"version_cli": getCLIVersion(),
			"value":       status,
		})
		return nil
	}

	fmt.Fprintf(out, "unifictl %s\n", getCLIVersion())
	fmt.Fprintf(out, "Controller: %s\n", GetConfig().ControllerURL)
	fmt.Fprintf(out, "Server Version: %s\n", status.ServerVersion)
	if status.Up {
		okLabel.Fprintln(out, "Up")
	} else {
		errorLabel.Fprintln(out, "Down")
	}
	return nil
}

// probeStatus reads /status. With a positive wait, failures without a response
// are retried until wait elapses; error statuses are returned at once.
func probeStatus(ctx context.Context, client *unifi.Client, wait time.Duration) (*StatusResponse, error) {
	probe := func(ctx context.Context) (*StatusResponse, error) {
		resp, err := client.Execute(ctx, unifi.Request{Path: statusPath})
		if err != nil {
			return nil, err
		}
		env, err := unifi.DecodeEnvelope(resp.Body)
		if err != nil {
			return nil, err
		}
		return &StatusResponse{
			Up:            env.Get("meta.up").Bool(),
			ServerVersion: env.Get("meta.server_version").String(),
			UUID:          env.Get("meta.uuid").String(),
		}, nil
	}

	if wait <= 0 {
		return probe(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return retry.DoWithData(func() (*StatusResponse, error) {
		return probe(waitCtx)
	},
		retry.Context(waitCtx),
		retry.Attempts(0),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, unifi.ErrNoResponse)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Uint("attempt", n+1).Err(err).Msg("controller not reachable yet")
		}),
	)
}
