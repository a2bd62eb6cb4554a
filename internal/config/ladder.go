package config

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

// ladderFile is the TOML layout of a ladder file:
//
//	[[step]]
//	name = "base"
//	top_k = 5
//
//	[[step]]
//	name = "enrich"
//	enrichment = true
type ladderFile struct {
	Steps []domain.StrategyStep `toml:"step"`
}

// LoadLadder reads and validates a ladder from a TOML file.
func LoadLadder(path string) (domain.Ladder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Ladder{}, fmt.Errorf("failed to read ladder file: %w", err)
	}
	return ParseLadder(data)
}

// ParseLadder decodes and validates a TOML ladder document.
func ParseLadder(data []byte) (domain.Ladder, error) {
	var f ladderFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return domain.Ladder{}, fmt.Errorf("failed to parse ladder: %w: %w", err, domain.ErrInvalidLadder)
	}
	return domain.NewLadder(f.Steps)
}

// Ladder returns the ladder from LADDER_FILE, or the default ladder shaped
// around TOP_K when no file is set.
func (c *Config) Ladder() (domain.Ladder, error) {
	if c.LadderFile != "" {
		return LoadLadder(c.LadderFile)
	}
	if c.TopK <= 0 {
		return domain.DefaultLadder(), nil
	}
	return domain.NewLadder([]domain.StrategyStep{
		{Name: "base", TopK: c.TopK},
		{Name: "rerank", TopK: c.TopK, Rerank: true},
		{Name: "refine", TopK: c.TopK, Refine: true},
		{Name: "refine_rerank", TopK: 2 * c.TopK, Refine: true, Rerank: true},
		{Name: "enrich", IsEnrichment: true},
	})
}
