package main

import (
	"context"
	"fmt"

	"github.com/loop-index/forge/internal/client"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check if the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient(port)
			ctx := context.Background()

			if !c.IsRunning(ctx) {
				fmt.Println("Daemon is not running")
				return nil
			}

			status, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			fmt.Printf("Daemon: running\n")
			fmt.Printf("Version: %s\n", status.Version)
			fmt.Printf("Model: %s\n", status.Model)
			if status.ConversationID != "" {
				fmt.Printf("Conversation: %s\n", status.ConversationID)
			}
			if status.Healthy {
				fmt.Printf("Provider: healthy\n")
			} else {
				fmt.Printf("Provider: not responding\n")
			}
			return nil
		},
	}
}
