package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func livenessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Manage link liveness tracking",
	}

	cmd.AddCommand(livenessListCmd())
	cmd.AddCommand(livenessShowCmd())
	cmd.AddCommand(livenessEnableCmd())
	cmd.AddCommand(livenessDisableCmd())

	return cmd
}

// --- liveness list ---

func livenessListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked link pairs and their states",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp struct {
				Pairs []pairView `json:"pairs"`
			}
			if err := client.get("/api/v1/liveness", &resp); err != nil {
				return fmt.Errorf("list liveness pairs: %w", err)
			}

			out, err := formatPairs(resp.Pairs, outputFormat)
			if err != nil {
				return fmt.Errorf("format pairs: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// --- liveness show ---

func livenessShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <interface-id>",
		Short: "Show the liveness state of one interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var resp endpointView
			path := "/api/v1/liveness/interfaces/" + url.PathEscape(args[0])
			if err := client.get(path, &resp); err != nil {
				return fmt.Errorf("show liveness: %w", err)
			}

			out, err := formatEndpoint(resp, outputFormat)
			if err != nil {
				return fmt.Errorf("format endpoint: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// --- liveness enable / disable ---

func livenessEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <interface-id>...",
		Short: "Enable liveness tracking on interfaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := client.post("/api/v1/liveness/enable",
				interfacesRequest{Interfaces: args}, nil); err != nil {
				return fmt.Errorf("enable liveness: %w", err)
			}

			fmt.Printf("liveness enabled on %d interface(s)\n", len(args))

			return nil
		},
	}
}

func livenessDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <interface-id>...",
		Short: "Disable liveness tracking on interfaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := client.post("/api/v1/liveness/disable",
				interfacesRequest{Interfaces: args}, nil); err != nil {
				return fmt.Errorf("disable liveness: %w", err)
			}

			fmt.Printf("liveness disabled on %d interface(s)\n", len(args))

			return nil
		},
	}
}
