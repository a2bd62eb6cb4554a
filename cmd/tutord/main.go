package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/tutorai/internal/cli"
	"github.com/cloo-solutions/tutorai/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tutord",
		Short: "Tutor daemon and admin CLI",
		Long:  "Tutor daemon for running the API server, enriching the index and managing snapshots",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.AskCmd())
	rootCmd.AddCommand(admin.EnrichCmd())
	rootCmd.AddCommand(admin.SegmentCmd())
	rootCmd.AddCommand(admin.SnapshotCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
