package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/loop-index/forge/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	port    int
	quiet   bool
	verbose bool
)

func main() {
	chat := chatCmd()

	rootCmd := &cobra.Command{
		Use:   "forge [message]",
		Short: "An interactive AI coding assistant driven by a multi-agent orchestrator.",
		Long: `An interactive AI coding assistant driven by a multi-agent orchestrator.

If a message is provided, it is sent as a one-shot query.
Example: forge "explain this repository"

Without arguments, starts interactive chat.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient(port)
			ctx := context.Background()

			if !c.IsRunning(ctx) {
				return fmt.Errorf("daemon is not running. Start it with: forged start")
			}

			if len(args) > 0 {
				message := strings.Join(args, " ")
				return c.Chat(ctx, message, chatOptions(), os.Stdout)
			}

			return chat.RunE(chat, args)
		},
	}

	rootCmd.PersistentFlags().IntVar(&port, "port", 8765, "Daemon listen port")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show assistant text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show tool results and events")

	rootCmd.AddCommand(chat)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func chatOptions() client.ChatOptions {
	opts := client.ChatOptions{Render: true}
	switch {
	case quiet:
		opts.Verbosity = client.VerbosityQuiet
	case verbose:
		opts.Verbosity = client.VerbosityVerbose
	}
	return opts
}
