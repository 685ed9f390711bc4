package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"configuration ok: storage=%s probe=%s datacenters=%d links=%d failover_configs=%d offerings=%d\n",
			cfg.Storage.Backend,
			cfg.HealthCheck.Probe,
			len(cfg.Datacenters),
			len(cfg.Links),
			len(cfg.FailoverConfigs),
			len(cfg.Offerings),
		)
		return nil
	},
}
