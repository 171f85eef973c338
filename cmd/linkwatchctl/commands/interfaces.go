package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func interfacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interfaces",
		Short: "Manage LLDP probing on interfaces",
	}

	cmd.AddCommand(interfacesListCmd())
	cmd.AddCommand(interfacesEnableCmd())
	cmd.AddCommand(interfacesDisableCmd())

	return cmd
}

// --- interfaces list ---

func interfacesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List interfaces known to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp struct {
				Interfaces []interfaceView `json:"interfaces"`
			}
			if err := client.get("/api/v1/interfaces", &resp); err != nil {
				return fmt.Errorf("list interfaces: %w", err)
			}

			out, err := formatInterfaces(resp.Interfaces, outputFormat)
			if err != nil {
				return fmt.Errorf("format interfaces: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// --- interfaces enable / disable ---

func interfacesEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <interface-id>...",
		Short: "Enable LLDP probing on interfaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := client.post("/api/v1/interfaces/enable",
				interfacesRequest{Interfaces: args}, nil); err != nil {
				return fmt.Errorf("enable interfaces: %w", err)
			}

			fmt.Printf("LLDP enabled on %d interface(s)\n", len(args))

			return nil
		},
	}
}

func interfacesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <interface-id>...",
		Short: "Disable LLDP probing on interfaces (also stops liveness tracking)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := client.post("/api/v1/interfaces/disable",
				interfacesRequest{Interfaces: args}, nil); err != nil {
				return fmt.Errorf("disable interfaces: %w", err)
			}

			fmt.Printf("LLDP disabled on %d interface(s)\n", len(args))

			return nil
		},
	}
}
