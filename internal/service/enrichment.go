package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultExcludedSections lists reference-only sections that carry no
// explanatory text.
var DefaultExcludedSections = []string{
	"Referencias", "Bibliografía", "Véase también", "Enlaces externos", "Notas",
	"References", "See also", "External links", "Notes", "Further reading",
}

// SourceFetcher finds and downloads the article that best matches a query.
// A nil document with a nil error means nothing usable was found.
type SourceFetcher interface {
	FetchDocument(ctx context.Context, query string) (*domain.Document, error)
}

// Embedder produces unit-norm vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryDeriver turns a question into a search query for the source fetcher.
type QueryDeriver interface {
	DeriveSearchQuery(ctx context.Context, question string) (string, error)
}

// VectorIndex is the dual-channel index shared by the enricher and the controller.
type VectorIndex interface {
	Insert(ctx context.Context, records []domain.EmbeddingRecord) (int, error)
	SearchByVector(ctx context.Context, query []float32, topK int) ([]domain.RetrievalResult, error)
	SearchWithRerank(ctx context.Context, query []float32, topK int, categoryWeight float64) ([]domain.RetrievalResult, error)
	Count() int
}

// EnricherConfig controls how documents become index records.
type EnricherConfig struct {
	Segment          SegmentConfig
	ExcludedSections []string
}

// Enricher grows the corpus: it fetches documents, segments them into
// chunks, embeds both channels and inserts the records into the index.
type Enricher struct {
	fetcher   SourceFetcher
	deriver   QueryDeriver
	embedder  Embedder
	index     VectorIndex
	segmenter *Segmenter
	excluded  map[string]bool
	logger    *zap.Logger
}

// NewEnricher creates an Enricher. fetcher and deriver may be nil for
// offline use, where only Enrich is called.
func NewEnricher(fetcher SourceFetcher, deriver QueryDeriver, embedder Embedder, index VectorIndex, cfg EnricherConfig, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	excludedNames := cfg.ExcludedSections
	if excludedNames == nil {
		excludedNames = DefaultExcludedSections
	}
	excluded := make(map[string]bool, len(excludedNames))
	for _, name := range excludedNames {
		excluded[strings.ToLower(strings.TrimSpace(name))] = true
	}

	return &Enricher{
		fetcher:   fetcher,
		deriver:   deriver,
		embedder:  embedder,
		index:     index,
		segmenter: NewSegmenter(cfg.Segment),
		excluded:  excluded,
		logger:    logger,
	}
}

// EnrichForQuestion derives a search query from question and enriches with
// it. A failing deriver falls back to the question itself.
func (e *Enricher) EnrichForQuestion(ctx context.Context, question string) (int, error) {
	query := question
	if e.deriver != nil {
		derived, err := e.deriver.DeriveSearchQuery(ctx, question)
		switch {
		case err != nil:
			e.logger.Warn("search query derivation failed, using question", zap.Error(err))
		case strings.TrimSpace(derived) != "":
			query = derived
		}
	}
	return e.EnrichQuery(ctx, query)
}

// EnrichQuery fetches the article for query and enriches with it. Finding
// nothing, or the source being unavailable, adds zero chunks without error.
func (e *Enricher) EnrichQuery(ctx context.Context, query string) (int, error) {
	if strings.TrimSpace(query) == "" {
		return 0, domain.ErrEmptyQuery
	}
	if e.fetcher == nil {
		return 0, nil
	}

	fetchCtx, span := telemetry.StartSpan(ctx, "enricher.fetch", queryAttrs(query, "fetch"))
	doc, err := e.fetcher.FetchDocument(fetchCtx, query)
	span.End()
	if err != nil {
		if errors.Is(err, domain.ErrFetchUnavailable) {
			e.logger.Warn("source unavailable", zap.String("query", query), zap.Error(err))
			return 0, nil
		}
		return 0, fmt.Errorf("failed to fetch document: %w", err)
	}
	if doc == nil {
		return 0, nil
	}

	return e.Enrich(ctx, doc)
}

// Enrich segments, embeds and indexes doc, returning how many chunks were added.
func (e *Enricher) Enrich(ctx context.Context, doc *domain.Document) (int, error) {
	if err := domain.ValidateDocument(doc); err != nil {
		return 0, err
	}

	ctx, span := telemetry.StartSpan(ctx, "enricher.enrich", queryAttrs(doc.Title, "enrich"))
	defer span.End()

	chunks := e.BuildChunks(doc)
	if len(chunks) == 0 {
		e.logger.Info("document produced no chunks", zap.String("title", doc.Title))
		return 0, nil
	}

	contentTexts := make([]string, len(chunks))
	categoryTexts := make([]string, len(chunks))
	for i, c := range chunks {
		contentTexts[i] = contentEmbeddingText(c)
		categoryTexts[i] = CategoryText(c.CategoryTags)
	}

	contentVectors, err := e.embedder.EmbedBatch(ctx, contentTexts)
	if err != nil {
		span.SetError(err)
		return 0, embeddingError("content", err)
	}
	categoryVectors, err := e.embedder.EmbedBatch(ctx, categoryTexts)
	if err != nil {
		span.SetError(err)
		return 0, embeddingError("category", err)
	}
	if len(contentVectors) != len(chunks) || len(categoryVectors) != len(chunks) {
		err := fmt.Errorf("got %d content and %d category vectors for %d chunks",
			len(contentVectors), len(categoryVectors), len(chunks))
		span.SetError(err)
		return 0, domain.Wrap(domain.ErrEmbeddingUnavailable, err)
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.EmbeddingRecord{
			ChunkID:        c.ID,
			Text:           c.Content,
			ContentVector:  contentVectors[i],
			CategoryVector: categoryVectors[i],
		}
	}

	added, err := e.index.Insert(ctx, records)
	if err != nil {
		span.SetError(err)
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}

	span.SetData("chunks_added", added)
	e.logger.Info("document enriched",
		zap.String("title", doc.Title),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunks_added", added))
	return added, nil
}

// BuildChunks drops excluded sections, then cleans, splits and segments
// every remaining section into chunks with ids, tags and token counts.
func (e *Enricher) BuildChunks(doc *domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	ordinals := make(map[string]int)
	for _, section := range doc.Sections {
		name := section.DisplayName()
		if e.Excluded(name) {
			continue
		}

		sentences := SplitSentences(CleanText(section.Text))
		result := e.segmenter.Segment(name, sentences)
		for _, g := range result.Groups {
			chunks = append(chunks, domain.Chunk{
				ID:           domain.ChunkID(doc.Title, name, ordinals[name]),
				Title:        doc.Title,
				Section:      name,
				Content:      g.Text,
				CategoryTags: ExtractTags(doc.Title, name, g.Text),
				TokenCount:   g.Tokens,
			})
			ordinals[name]++
		}
	}
	return chunks
}

// Excluded reports whether a section with this display name is skipped.
func (e *Enricher) Excluded(section string) bool {
	return e.excluded[strings.ToLower(strings.TrimSpace(section))]
}

// Segmenter returns the segmenter used for chunking.
func (e *Enricher) Segmenter() *Segmenter {
	return e.segmenter
}

func contentEmbeddingText(c domain.Chunk) string {
	return c.Title + "\n" + c.Section + "\n\n" + c.Content
}

func embeddingError(channel string, err error) error {
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return fmt.Errorf("failed to embed %s: %w", channel, err)
	}
	return domain.Wrap(domain.ErrEmbeddingUnavailable, fmt.Errorf("failed to embed %s: %w", channel, err))
}

// queryAttrs builds span attributes for a query-scoped operation.
func queryAttrs(query, operation string) telemetry.SpanAttributes {
	return telemetry.SpanAttributes{Query: query, Operation: operation}
}
