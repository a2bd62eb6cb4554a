package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question in-process",
		Long:  "Run one question session against the configured index without starting the server",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	deps, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer closeRuntime(deps)

	answer, err := deps.Controller.AnswerQuestion(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	fmt.Fprintln(out, answer.Text)
	fmt.Fprintf(out, "\nstrategy: %s  attempts: %d  enrichments: %d  tokens: %d\n",
		answer.Strategy, answer.Attempts, answer.Enrichments, answer.TokensUsed)
	return nil
}
