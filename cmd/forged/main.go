package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	port         int
	ollamaURL    string
	model        string
	workflowPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "forged",
		Short: "The forge daemon: serves the multi-agent orchestrator over WebSocket.",
	}

	rootCmd.PersistentFlags().IntVar(&port, "port", 8765, "Daemon listen port")
	rootCmd.PersistentFlags().StringVar(&ollamaURL, "ollama-url", "http://localhost:11434", "Ollama API endpoint")
	rootCmd.PersistentFlags().StringVar(&model, "model", "qwen2.5-coder:14b", "Default model for the built-in workflow")
	rootCmd.PersistentFlags().StringVar(&workflowPath, "workflow", "", "Path to a workflow YAML file (default: built-in coder workflow)")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(terminateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
