package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type IndexStats struct {
	Count     int  `json:"count"`
	Dimension int  `json:"dimension"`
	Corrupt   bool `json:"corrupt"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index size and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStats(cmd, api, outputJSON)
		},
	}
}

func runStats(cmd *cobra.Command, api *APIClient, outputJSON bool) error {
	resp, err := api.Get("/index/stats")
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	var stats IndexStats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "chunks:    %d\n", stats.Count)
	fmt.Fprintf(out, "dimension: %d\n", stats.Dimension)
	if stats.Corrupt {
		fmt.Fprintln(out, "status:    corrupt (writes refused)")
	} else {
		fmt.Fprintln(out, "status:    ok")
	}
	return nil
}
