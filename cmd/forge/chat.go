package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/loop-index/forge/internal/client"
	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient(port)
			ctx := context.Background()

			if !c.IsRunning(ctx) {
				return fmt.Errorf("daemon is not running. Start it with: forged start")
			}

			printBanner(ctx, c)
			return runREPL(ctx, c)
		},
	}
}

func printBanner(ctx context.Context, c *client.Client) {
	fmt.Println("forge — interactive AI coding assistant")
	if status, err := c.Status(ctx); err == nil {
		fmt.Printf("model: %s · daemon v%s\n", status.Model, status.Version)
	}
	fmt.Println("Type /help for commands, /quit to exit.")
	fmt.Println()
}

func printChatHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /help    show this help")
	fmt.Println("  /status  show daemon status")
	fmt.Println("  /quit    exit")
}

func runREPL(ctx context.Context, c *client.Client) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("❯ ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			switch strings.TrimPrefix(input, "/") {
			case "quit", "exit", "q":
				return nil
			case "help":
				printChatHelp()
			case "status":
				status, err := c.Status(ctx)
				if err != nil {
					fmt.Printf("failed to get status: %v\n", err)
					continue
				}
				fmt.Printf("model: %s · healthy: %t\n", status.Model, status.Healthy)
			default:
				fmt.Printf("unknown command: %s\n", input)
			}
			continue
		}

		if err := c.Chat(ctx, input, chatOptions(), os.Stdout); err != nil {
			fmt.Printf("error: %v\n", err)
		}
		fmt.Println()
	}
}
