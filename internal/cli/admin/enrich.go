package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func EnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich [query]",
		Short: "Fetch and index source articles",
		Long: `Enrich the index synchronously.

With a query argument, fetch and index the best matching article. With --file,
read one query per line (blank lines and lines starting with # are skipped).
With --document, index a local JSON document {"title", "sections": [{"name", "text"}]}.`,
		Args: cobra.ArbitraryArgs,
		RunE: runEnrich,
	}

	cmd.Flags().StringP("file", "f", "", "File with one query per line")
	cmd.Flags().String("document", "", "JSON document to index")
	cmd.Flags().Bool("continue-on-error", false, "Keep going when a query fails")

	return cmd
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	file, _ := cmd.Flags().GetString("file")
	docPath, _ := cmd.Flags().GetString("document")
	keepGoing, _ := cmd.Flags().GetBool("continue-on-error")

	sources := 0
	for _, set := range []bool{len(args) > 0, file != "", docPath != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("provide exactly one of a query, --file or --document")
	}

	var doc *domain.Document
	var queries []string
	switch {
	case docPath != "":
		d, err := readDocumentFile(docPath)
		if err != nil {
			return err
		}
		doc = d
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open query file: %w", err)
		}
		queries, err = readQueries(f)
		f.Close()
		if err != nil {
			return err
		}
	default:
		queries = []string{strings.Join(args, " ")}
	}

	deps, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer closeRuntime(deps)

	out := cmd.OutOrStdout()
	if doc != nil {
		added, err := deps.Enricher.Enrich(ctx, doc)
		if err != nil {
			return fmt.Errorf("failed to enrich document: %w", err)
		}
		fmt.Fprintf(out, "%s: %d chunks added\n", doc.Title, added)
		return nil
	}

	total, failed := 0, 0
	for _, q := range queries {
		added, err := deps.Enricher.EnrichQuery(ctx, q)
		if err != nil {
			if !keepGoing {
				return fmt.Errorf("failed to enrich %q: %w", q, err)
			}
			failed++
			deps.Logger.Error("enrichment failed", zap.String("query", q), zap.Error(err))
			continue
		}
		total += added
		fmt.Fprintf(out, "%s: %d chunks added\n", q, added)
	}
	fmt.Fprintf(out, "\n%d queries, %d chunks added, %d failed, index size %d\n",
		len(queries), total, failed, deps.Index.Count())
	return nil
}

func readQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	return queries, nil
}

func readDocumentFile(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if err := domain.ValidateDocument(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
