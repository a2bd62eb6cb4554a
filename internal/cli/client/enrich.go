package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type DocumentPayload struct {
	Title    string           `json:"title"`
	Sections []SectionPayload `json:"sections"`
}

type SectionPayload struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

type EnrichRequest struct {
	Query    string           `json:"query,omitempty"`
	Document *DocumentPayload `json:"document,omitempty"`
}

type EnrichResponse struct {
	JobID       string `json:"job_id,omitempty"`
	ChunksAdded int    `json:"chunks_added"`
}

type JobList struct {
	Jobs       []EnrichmentJob `json:"jobs"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

type EnrichmentJob struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	Status      string `json:"status"`
	Retries     int    `json:"retries"`
	Error       string `json:"error,omitempty"`
	ChunksAdded int    `json:"chunks_added"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

// EnrichCmd creates the enrich command.
func EnrichCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "enrich [query]",
		Short: "Add source material to the tutor's index",
		Long: `Enrich the index with the article best matching a query, or with a local
document given as JSON ({"title": ..., "sections": [{"name": ..., "text": ...}]}).

Query enrichment is queued when the server has a job store; use 'enrich status <id>'
to follow it.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if (query == "") == (file == "") {
				return fmt.Errorf("provide either a query or --file")
			}

			req := EnrichRequest{Query: query}
			if file != "" {
				doc, err := readDocument(file)
				if err != nil {
					return err
				}
				req = EnrichRequest{Document: doc}
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEnrich(cmd, api, req, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON document to index")
	cmd.AddCommand(enrichStatusCmd())
	cmd.AddCommand(enrichJobsCmd())

	return cmd
}

func enrichStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of a queued enrichment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEnrichStatus(cmd, api, args[0], outputJSON)
		},
	}
}

func enrichJobsCmd() *cobra.Command {
	var (
		status string
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List queued enrichments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEnrichJobs(cmd, api, status, cursor, limit, outputJSON)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only jobs in this state (pending, processing, completed, failed)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 20, "Jobs per page")

	return cmd
}

func readDocument(path string) (*DocumentPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var doc DocumentPayload
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

func runEnrich(cmd *cobra.Command, api *APIClient, req EnrichRequest, outputJSON bool) error {
	resp, err := api.Post("/enrich", req)
	if err != nil {
		return fmt.Errorf("enrich failed: %w", err)
	}

	var result EnrichResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse enrich response: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, result)
	}

	if result.JobID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Enrichment queued: %s\n", result.JobID)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %d chunks.\n", result.ChunksAdded)
	return nil
}

func runEnrichStatus(cmd *cobra.Command, api *APIClient, id string, outputJSON bool) error {
	resp, err := api.Get("/enrich/" + id)
	if err != nil {
		return fmt.Errorf("failed to get enrichment job: %w", err)
	}

	var job EnrichmentJob
	if err := json.Unmarshal(resp.Data, &job); err != nil {
		return fmt.Errorf("failed to parse enrichment job: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, job)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s  %q\n", job.ID, job.Status, job.Query)
	if job.ChunksAdded > 0 {
		fmt.Fprintf(out, "chunks added: %d\n", job.ChunksAdded)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "error: %s (retries: %d)\n", job.Error, job.Retries)
	}
	return nil
}

func runEnrichJobs(cmd *cobra.Command, api *APIClient, status, cursor string, limit int, outputJSON bool) error {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	path := "/enrich"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list enrichment jobs: %w", err)
	}

	var list JobList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return fmt.Errorf("failed to parse enrichment jobs: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, list)
	}

	out := cmd.OutOrStdout()
	if len(list.Jobs) == 0 {
		fmt.Fprintln(out, "No enrichment jobs.")
		return nil
	}
	for _, job := range list.Jobs {
		fmt.Fprintf(out, "%s  %-10s  %3d  %q\n", job.ID, job.Status, job.ChunksAdded, job.Query)
	}
	if list.HasMore {
		fmt.Fprintf(out, "\nMore: --cursor %s\n", list.NextCursor)
	}
	return nil
}
