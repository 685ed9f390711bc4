// Package cli implements the dr-orchestrator command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// configPath is shared by every command
var configPath string

// rootCmd is the base command for dr-orchestrator.
var rootCmd = &cobra.Command{
	Use:   "dr-orchestrator",
	Short: "Multi-region disaster recovery control plane",
	Long: `dr-orchestrator keeps a registry of datacenters and the links between them,
routes users to a datacenter, fails datacenter pairs over and back, coordinates
incident recovery and plans capacity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}
