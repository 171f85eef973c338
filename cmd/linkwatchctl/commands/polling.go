package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// errInvalidDuration is returned when the polling-time argument does not
// parse as a positive duration.
var errInvalidDuration = errors.New("polling time must be a positive duration (e.g., 3s)")

func pollingTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "polling-time",
		Short: "Manage the discovery polling cadence",
	}

	cmd.AddCommand(pollingTimeGetCmd())
	cmd.AddCommand(pollingTimeSetCmd())

	return cmd
}

func pollingTimeGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current polling interval",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp pollingTimeView
			if err := client.get("/api/v1/polling-time", &resp); err != nil {
				return fmt.Errorf("get polling time: %w", err)
			}

			fmt.Println(resp.PollingTime)

			return nil
		},
	}
}

func pollingTimeSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <duration>",
		Short: "Set the polling interval (e.g., 3s, 500ms)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil || d <= 0 {
				return fmt.Errorf("%w: %q", errInvalidDuration, args[0])
			}

			if err := client.post("/api/v1/polling-time",
				pollingTimeView{PollingTime: d.String()}, nil); err != nil {
				return fmt.Errorf("set polling time: %w", err)
			}

			fmt.Println("polling time set to", d)

			return nil
		},
	}
}
