package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	SessionID   string `json:"session_id"`
	Answer      string `json:"answer"`
	Strategy    string `json:"strategy"`
	TokensUsed  int    `json:"tokens_used"`
	Attempts    int    `json:"attempts"`
	Enrichments int    `json:"enrichments"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the tutor a question",
		Long:  "Sends a question to the tutor and prints the answer with the strategy that produced it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, api, strings.Join(args, " "), outputJSON)
		},
	}
}

func runAsk(cmd *cobra.Command, api *APIClient, question string, outputJSON bool) error {
	resp, err := api.Post("/ask", AskRequest{Question: question})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var answer AskResponse
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, answer)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Answer)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "strategy: %s  attempts: %d  enrichments: %d  tokens: %d\n",
		answer.Strategy, answer.Attempts, answer.Enrichments, answer.TokensUsed)
	return nil
}
