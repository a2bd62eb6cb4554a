package domain

import (
	"fmt"
	"strings"
)

// Chunk is a bounded span of one document section, the unit of retrieval.
type Chunk struct {
	ID           string
	Title        string
	Section      string
	Content      string
	CategoryTags []string
	TokenCount   int
}

// ChunkID builds the stable id "<title>__<section>__<ordinal>".
func ChunkID(title, section string, ordinal int) string {
	if strings.TrimSpace(section) == "" {
		section = GeneralSection
	}
	return fmt.Sprintf("%s__%s__%d", title, section, ordinal)
}

// EmbeddingRecord is what the vector index stores for one chunk.
// Vectors are unit-norm and never mutated once inserted.
type EmbeddingRecord struct {
	ChunkID        string
	Text           string
	ContentVector  []float32
	CategoryVector []float32
}

// ValidateEmbeddingRecord checks ids and vector shape for a record.
func ValidateEmbeddingRecord(r EmbeddingRecord, dimension int) error {
	if r.ChunkID == "" {
		return fmt.Errorf("embedding record chunk ID is required: %w", ErrMissingRequiredField)
	}
	if len(r.ContentVector) != dimension || len(r.CategoryVector) != dimension {
		return fmt.Errorf("record %s has content=%d category=%d, want %d: %w",
			r.ChunkID, len(r.ContentVector), len(r.CategoryVector), dimension, ErrDimensionMismatch)
	}
	return nil
}
