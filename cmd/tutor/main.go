package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/tutorai/internal/cli"
	"github.com/cloo-solutions/tutorai/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "tutor",
		Short: "Tutor CLI - ask questions and grow the tutor's sources",
		Long: `Tutor CLI talks to a running tutord server.

Environment variables:
  TUTOR_API_TOKEN  Bearer token, when the server requires one
  TUTOR_API_URL    API base URL (default: http://localhost:8080)`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.EnrichCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
