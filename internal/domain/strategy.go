package domain

import "fmt"

// StrategyStep is one rung of the retrieval ladder.
type StrategyStep struct {
	Name         string `toml:"name" json:"name"`
	TopK         int    `toml:"top_k" json:"top_k"`
	Refine       bool   `toml:"refine" json:"refine"`
	Rerank       bool   `toml:"rerank" json:"rerank"`
	IsEnrichment bool   `toml:"enrichment" json:"enrichment"`
}

// Ladder is an ordered, immutable sequence of strategy steps.
type Ladder struct {
	steps []StrategyStep
}

// NewLadder validates the steps and returns a Ladder holding its own copy.
//
// Rules: at least one step, unique non-empty names, positive top_k on
// retrieval steps, and at most one enrichment step which must be last.
func NewLadder(steps []StrategyStep) (Ladder, error) {
	if len(steps) == 0 {
		return Ladder{}, fmt.Errorf("ladder has no steps: %w", ErrInvalidLadder)
	}

	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return Ladder{}, fmt.Errorf("step %d has no name: %w", i, ErrInvalidLadder)
		}
		if seen[s.Name] {
			return Ladder{}, fmt.Errorf("duplicate step %q: %w", s.Name, ErrInvalidLadder)
		}
		seen[s.Name] = true

		if s.IsEnrichment {
			if i != len(steps)-1 {
				return Ladder{}, fmt.Errorf("enrichment step %q must be last: %w", s.Name, ErrInvalidLadder)
			}
			continue
		}
		if s.TopK <= 0 {
			return Ladder{}, fmt.Errorf("step %q has top_k %d: %w", s.Name, s.TopK, ErrInvalidLadder)
		}
	}

	cp := make([]StrategyStep, len(steps))
	copy(cp, steps)
	return Ladder{steps: cp}, nil
}

// DefaultLadder returns the canonical ladder: plain search, category rerank,
// refined question, refined question with a wider rerank, then enrichment.
func DefaultLadder() Ladder {
	l, _ := NewLadder([]StrategyStep{
		{Name: "base", TopK: 5},
		{Name: "rerank", TopK: 5, Rerank: true},
		{Name: "refine", TopK: 5, Refine: true},
		{Name: "refine_rerank", TopK: 10, Refine: true, Rerank: true},
		{Name: "enrich", IsEnrichment: true},
	})
	return l
}

// Len returns the number of steps.
func (l Ladder) Len() int { return len(l.steps) }

// Step returns the step at position i.
func (l Ladder) Step(i int) StrategyStep { return l.steps[i] }

// Steps returns a copy of the steps.
func (l Ladder) Steps() []StrategyStep {
	cp := make([]StrategyStep, len(l.steps))
	copy(cp, l.steps)
	return cp
}

// EnrichmentIndex returns the position of the enrichment step, or -1.
func (l Ladder) EnrichmentIndex() int {
	if n := len(l.steps); n > 0 && l.steps[n-1].IsEnrichment {
		return n - 1
	}
	return -1
}

// RetrievalSteps counts the steps that search the index.
func (l Ladder) RetrievalSteps() int {
	n := len(l.steps)
	if l.EnrichmentIndex() >= 0 {
		n--
	}
	return n
}
