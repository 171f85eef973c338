package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func loopsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loops",
		Short: "List detected loops",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp struct {
				Loops []loopView `json:"loops"`
			}
			if err := client.get("/api/v1/loops", &resp); err != nil {
				return fmt.Errorf("list loops: %w", err)
			}

			out, err := formatLoops(resp.Loops, outputFormat)
			if err != nil {
				return fmt.Errorf("format loops: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}
