package main

import (
	"os"

	"github.com/spf13/cobra"

	"agentteam/internal/delivery/server/bootstrap"
	"agentteam/internal/shared/logging"
)

func main() {
	var configPath string
	root := &cobra.Command{
		Use:           "agent-teamd",
		Short:         "Serve the agent team orchestration API",
		Args:          cobra.NoArgs,
		Version:       bootstrap.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap.RunServer(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "server config file (defaults to $AGENT_TEAM_CONFIG_PATH, ~/.agent-team/config.yaml, ./configs/config.yaml)")

	if err := root.Execute(); err != nil {
		logging.NewComponentLogger("Main").Error("agent team server exited: %v", err)
		os.Exit(1)
	}
}
