//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Embed_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()

	embedding, err := client.Embed(ctx, "La Batalla de Boyacá tuvo lugar el 7 de agosto de 1819.")

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_Assistant_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	assistant := NewAssistant(NewChatAdapter(apiKey, "", ""))
	ctx := context.Background()

	ok, err := assistant.IsSufficient(ctx, "¿En qué año fue la Batalla de Boyacá?",
		[]string{"La Batalla de Boyacá tuvo lugar el 7 de agosto de 1819."})

	require.NoError(t, err)
	assert.True(t, ok)
}
