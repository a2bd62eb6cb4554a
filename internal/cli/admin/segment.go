package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/tutorai/internal/app"
	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/service"
	"github.com/cloo-solutions/tutorai/internal/wiki"
	"github.com/spf13/cobra"
)

func SegmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment [query]",
		Short: "Show how a document would be chunked",
		Long: `Dry-run the segmenter on a fetched article or a local JSON document and print
each section's chunks, token counts and partition cost. Nothing is embedded or stored.`,
		Args: cobra.ArbitraryArgs,
		RunE: runSegment,
	}

	cmd.Flags().String("document", "", "JSON document to segment instead of fetching")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().Uint64("seed", 1, "Annealing seed; the report is reproducible for a given seed")

	return cmd
}

// SectionReport is the dry-run result for one section.
type SectionReport struct {
	Section      string        `json:"section"`
	Excluded     bool          `json:"excluded,omitempty"`
	Sentences    int           `json:"sentences"`
	Cost         float64       `json:"cost"`
	AnnealedCost float64       `json:"annealed_cost"`
	Chunks       []ChunkReport `json:"chunks,omitempty"`
}

type ChunkReport struct {
	ID     string   `json:"id"`
	Tokens int      `json:"tokens"`
	Tags   []string `json:"tags,omitempty"`
	Text   string   `json:"text"`
}

func runSegment(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	docPath, _ := cmd.Flags().GetString("document")
	outputFormat, _ := cmd.Flags().GetString("output")
	seed, _ := cmd.Flags().GetUint64("seed")

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var doc *domain.Document
	switch {
	case docPath != "":
		doc, err = readDocumentFile(docPath)
		if err != nil {
			return err
		}
	case len(args) > 0:
		client := wiki.NewClient(wiki.Config{
			APIURL:            cfg.WikiAPIURL,
			RequestsPerSecond: cfg.WikiRequestsPerSecond,
			Logger:            logger.Named("wiki"),
		})
		doc, err = client.FetchDocument(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("no article found for %q", strings.Join(args, " "))
		}
	default:
		return fmt.Errorf("provide a query or --document")
	}

	segment := (&app.Dependencies{Config: cfg}).SegmentConfig()
	if seed == 0 {
		seed = 1
	}
	segment.Seed = seed
	enricher := service.NewEnricher(nil, nil, nil, nil, service.EnricherConfig{
		Segment:          segment,
		ExcludedSections: cfg.ExcludedSections,
	}, logger)

	reports := SegmentDocument(enricher, doc)
	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(reports, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
		return nil
	}
	printSegmentReport(cmd.OutOrStdout(), doc.Title, reports)
	return nil
}

// SegmentDocument segments every section of doc the same way enrichment does.
// The enricher's segmenter must be seeded so both passes agree.
func SegmentDocument(enricher *service.Enricher, doc *domain.Document) []SectionReport {
	chunks := enricher.BuildChunks(doc)
	bySection := make(map[string][]domain.Chunk)
	for _, c := range chunks {
		bySection[c.Section] = append(bySection[c.Section], c)
	}

	reports := make([]SectionReport, 0, len(doc.Sections))
	for _, section := range doc.Sections {
		name := section.DisplayName()
		sentences := service.SplitSentences(service.CleanText(section.Text))
		report := SectionReport{Section: name, Sentences: len(sentences)}
		if enricher.Excluded(name) {
			report.Excluded = true
			reports = append(reports, report)
			continue
		}

		result := enricher.Segmenter().Segment(name, sentences)
		report.Cost = result.Cost
		report.AnnealedCost = result.AnnealedCost
		for _, c := range bySection[name] {
			report.Chunks = append(report.Chunks, ChunkReport{
				ID:     c.ID,
				Tokens: c.TokenCount,
				Tags:   c.CategoryTags,
				Text:   c.Content,
			})
		}
		reports = append(reports, report)
	}
	return reports
}

func printSegmentReport(w io.Writer, title string, reports []SectionReport) {
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len([]rune(title))))
	for _, r := range reports {
		if r.Excluded {
			fmt.Fprintf(w, "\n[%s] excluded\n", r.Section)
			continue
		}
		fmt.Fprintf(w, "\n[%s] %d sentences, %d chunks, cost %.2f (annealed %.2f)\n",
			r.Section, r.Sentences, len(r.Chunks), r.Cost, r.AnnealedCost)
		for _, c := range r.Chunks {
			preview := []rune(c.Text)
			if len(preview) > 80 {
				preview = append(preview[:77], []rune("...")...)
			}
			fmt.Fprintf(w, "  %-40s %4d tokens  %s\n", c.ID, c.Tokens, string(preview))
		}
	}
}
