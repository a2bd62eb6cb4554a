package admin

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQueries(t *testing.T) {
	input := `
# siglo XIX
Revolución Industrial
  Independencia de México  

Napoleón Bonaparte
`
	queries, err := readQueries(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Revolución Industrial", "Independencia de México", "Napoleón Bonaparte"}, queries)
}

func TestReadDocumentFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"title":"Roma","sections":[{"text":"Fundada en 753 a. C."}]}`), 0600))
	doc, err := readDocumentFile(valid)
	require.NoError(t, err)
	assert.Equal(t, "Roma", doc.Title)
	require.Len(t, doc.Sections, 1)

	untitled := filepath.Join(dir, "untitled.json")
	require.NoError(t, os.WriteFile(untitled, []byte(`{"sections":[{"text":"x"}]}`), 0600))
	_, err = readDocumentFile(untitled)
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)

	_, err = readDocumentFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func testDocument() *domain.Document {
	return &domain.Document{
		Title: "Imperio Azteca",
		Sections: []domain.Section{
			{Text: "El Imperio Azteca dominó el centro de México. Su capital fue Tenochtitlan. La ciudad se fundó en 1325."},
			{Name: "Economía", Text: "El comercio se basaba en el trueque. El cacao servía como moneda. Los mercados eran enormes."},
			{Name: "Referencias", Text: "Libro uno. Libro dos."},
		},
	}
}

func testEnricher() *service.Enricher {
	return service.NewEnricher(nil, nil, nil, nil, service.EnricherConfig{
		Segment:          service.SegmentConfig{MaxTokens: 12, MinTokens: 4, Iterations: 300, Seed: 7},
		ExcludedSections: []string{"Referencias"},
	}, nil)
}

func TestSegmentDocument(t *testing.T) {
	reports := SegmentDocument(testEnricher(), testDocument())

	require.Len(t, reports, 3)
	assert.Equal(t, domain.GeneralSection, reports[0].Section)
	assert.Equal(t, "Economía", reports[1].Section)
	assert.True(t, reports[2].Excluded)
	assert.Empty(t, reports[2].Chunks)

	for _, r := range reports[:2] {
		require.NotEmpty(t, r.Chunks, r.Section)
		assert.Equal(t, 3, r.Sentences)
		for i, c := range r.Chunks {
			assert.Equal(t, domain.ChunkID("Imperio Azteca", r.Section, i), c.ID)
			assert.Positive(t, c.Tokens)
		}
	}
}

func TestSegmentDocument_MatchesEnrichment(t *testing.T) {
	enricher := testEnricher()
	doc := testDocument()

	chunks := enricher.BuildChunks(doc)
	var reported int
	for _, r := range SegmentDocument(enricher, doc) {
		reported += len(r.Chunks)
	}
	assert.Equal(t, len(chunks), reported)
}

func TestPrintSegmentReport(t *testing.T) {
	var out bytes.Buffer
	printSegmentReport(&out, "Imperio Azteca", SegmentDocument(testEnricher(), testDocument()))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Imperio Azteca\n=============="))
	assert.Contains(t, text, "[General]")
	assert.Contains(t, text, "[Referencias] excluded")
	assert.Contains(t, text, "Imperio Azteca__Economía__0")
}
