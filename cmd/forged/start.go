package main

import (
	"github.com/loop-index/forge/internal/daemon"
	"github.com/spf13/cobra"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon server",
		Long:  "Start the forge daemon in the foreground. The daemon runs the orchestrator and talks to the model provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := daemon.NewServer(port, ollamaURL, model, workflowPath)
			if err != nil {
				return err
			}
			return server.Run()
		},
	}
}
