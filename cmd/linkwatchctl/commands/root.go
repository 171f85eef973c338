package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// client is the REST client, initialized in PersistentPreRunE.
	client *restClient

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the daemon address (host:port) for the REST connection.
	serverAddr string
)

// rootCmd is the top-level cobra command for linkwatchctl.
var rootCmd = &cobra.Command{
	Use:   "linkwatchctl",
	Short: "CLI client for the linkwatch daemon",
	Long:  "linkwatchctl communicates with the linkwatchd daemon via its REST API to manage LLDP probing, link liveness, and loop records.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = newRESTClient("http://" + serverAddr)
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080",
		"linkwatchd daemon address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(interfacesCmd())
	rootCmd.AddCommand(livenessCmd())
	rootCmd.AddCommand(loopsCmd())
	rootCmd.AddCommand(pollingTimeCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
