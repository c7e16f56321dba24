package main

import (
	"context"
	"fmt"

	"github.com/loop-index/forge/internal/client"
	"github.com/spf13/cobra"
)

func terminateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminate",
		Short: "Stop the daemon",
		Long:  "Stop the running forge daemon gracefully.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient(port)
			ctx := context.Background()

			if !c.IsRunning(ctx) {
				fmt.Println("Daemon is not running")
				return nil
			}

			if err := c.Terminate(ctx); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}

			fmt.Println("Daemon stopped")
			return nil
		},
	}
}
