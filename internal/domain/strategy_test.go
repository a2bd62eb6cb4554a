package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLadder(t *testing.T) {
	l := DefaultLadder()

	require.Equal(t, 5, l.Len())
	assert.Equal(t, "base", l.Step(0).Name)
	assert.True(t, l.Step(1).Rerank)
	assert.True(t, l.Step(2).Refine)
	assert.Equal(t, 10, l.Step(3).TopK)
	assert.True(t, l.Step(4).IsEnrichment)
	assert.Equal(t, 4, l.EnrichmentIndex())
	assert.Equal(t, 4, l.RetrievalSteps())
}

func TestNewLadder(t *testing.T) {
	tests := []struct {
		name    string
		steps   []StrategyStep
		wantErr bool
	}{
		{"empty", nil, true},
		{"missing name", []StrategyStep{{TopK: 5}}, true},
		{"duplicate name", []StrategyStep{{Name: "a", TopK: 5}, {Name: "a", TopK: 5}}, true},
		{"zero top_k", []StrategyStep{{Name: "a"}}, true},
		{"enrichment not last", []StrategyStep{{Name: "e", IsEnrichment: true}, {Name: "a", TopK: 5}}, true},
		{"retrieval only", []StrategyStep{{Name: "a", TopK: 3}}, false},
		{"enrichment only", []StrategyStep{{Name: "e", IsEnrichment: true}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLadder(tt.steps)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidLadder))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLadder_IsImmutable(t *testing.T) {
	steps := []StrategyStep{{Name: "a", TopK: 3}}
	l, err := NewLadder(steps)
	require.NoError(t, err)

	steps[0].TopK = 99
	assert.Equal(t, 3, l.Step(0).TopK)

	out := l.Steps()
	out[0].Name = "changed"
	assert.Equal(t, "a", l.Step(0).Name)
}

func TestLadder_WithoutEnrichment(t *testing.T) {
	l, err := NewLadder([]StrategyStep{{Name: "a", TopK: 3}, {Name: "b", TopK: 3, Rerank: true}})
	require.NoError(t, err)
	assert.Equal(t, -1, l.EnrichmentIndex())
	assert.Equal(t, 2, l.RetrievalSteps())
}
