package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"testing"

	"github.com/cloo-solutions/tutorai/internal/config"
	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/index"
	"github.com/cloo-solutions/tutorai/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		EmbeddingDimensions:   8,
		EmbeddingModel:        "text-embedding-3-small",
		ChatModel:             "gpt-4o-mini",
		MaxChunkTokens:        120,
		MinChunkTokens:        60,
		AnnealIterations:      200,
		CoolingRate:           0.01,
		TopK:                  3,
		CategoryWeight:        0.3,
		MaxEnrichments:        1,
		WikiRequestsPerSecond: 2,
	}
}

func TestOpen_InMemory(t *testing.T) {
	deps, err := Open(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer deps.Close()

	assert.Nil(t, deps.Pool)
	assert.Nil(t, deps.Jobs)
	assert.Nil(t, deps.Snapshots)
	require.NotNil(t, deps.Index)
	assert.Equal(t, 0, deps.Index.Count())
	assert.Equal(t, 8, deps.Index.Dimension())
}

func TestBuildServices_RequiresOpenAI(t *testing.T) {
	deps, err := Open(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer deps.Close()

	err = deps.BuildServices()
	assert.True(t, errors.Is(err, ErrModelsNotConfigured))
	assert.Nil(t, deps.Controller)
}

func TestBuildServices_WithoutDatabaseHasNoWorker(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = "sk-test"

	deps, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer deps.Close()

	require.NoError(t, deps.BuildServices())
	assert.NotNil(t, deps.Enricher)
	assert.NotNil(t, deps.Controller)
	assert.Nil(t, deps.Worker)
	assert.False(t, deps.StartWorker(context.Background()))

	ctrl := deps.Controller.Config()
	assert.Equal(t, 5, ctrl.Ladder.Len())
	assert.Equal(t, 0.3, ctrl.CategoryWeight)
	assert.Equal(t, 1, ctrl.MaxEnrichments)
}

func TestBuildServices_BadLadderFile(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.LadderFile = t.TempDir() + "/missing.toml"

	deps, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer deps.Close()

	assert.Error(t, deps.BuildServices())
}

func TestSegmentConfig(t *testing.T) {
	deps := &Dependencies{Config: testConfig()}

	seg := deps.SegmentConfig()
	assert.Equal(t, 120, seg.MaxTokens)
	assert.Equal(t, 60, seg.MinTokens)
	assert.Equal(t, 200, seg.Iterations)
	assert.Equal(t, 0.01, seg.CoolingRate)
	assert.Equal(t, 1.0, seg.InitialTemperature)
}

type objectMap map[string][]byte

func (m objectMap) PutObject(_ context.Context, key string, body []byte, _ string) error {
	m[key] = append([]byte(nil), body...)
	return nil
}

func (m objectMap) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
	}
	return data, nil
}

func pushTwoRecords(t *testing.T, objects objectMap) (*storage.Snapshotter, string) {
	t.Helper()
	snapshots := storage.NewSnapshotter(objects, "snapshots", zap.NewNop())
	m, err := snapshots.Push(context.Background(), index.Snapshot{
		Dimension: 2,
		IDs:       []string{"Boyacá__General__0", "Boyacá__Desarrollo__0"},
		Texts:     []string{"La batalla se libró en 1819.", "Santander comandó la vanguardia."},
		Content:   [][]float32{{1, 0}, {0, 1}},
		Category:  [][]float32{{0, 1}, {1, 0}},
	})
	require.NoError(t, err)
	return snapshots, m.Version
}

func TestSeedFromSnapshot_Consistent(t *testing.T) {
	ctx := context.Background()
	snapshots, _ := pushTwoRecords(t, objectMap{})
	deps := &Dependencies{Config: testConfig(), Logger: zap.NewNop(), Snapshots: snapshots}

	store, err := deps.seedFromSnapshot(ctx)
	require.NoError(t, err)

	ix, err := index.Open(ctx, store, index.Options{Dimension: 2})
	require.NoError(t, err)
	assert.False(t, ix.Corrupt())
	assert.Equal(t, 2, ix.Count())
}

func TestSeedFromSnapshot_InconsistentSnapshotBlocksWrites(t *testing.T) {
	ctx := context.Background()
	objects := objectMap{}
	snapshots, version := pushTwoRecords(t, objects)
	objects[path.Join("snapshots", version, "entries.json")] =
		[]byte(`[{"id":"Boyacá__General__0","text":"La batalla se libró en 1819."}]`)
	deps := &Dependencies{Config: testConfig(), Logger: zap.NewNop(), Snapshots: snapshots}

	store, err := deps.seedFromSnapshot(ctx)
	require.NoError(t, err)

	ix, err := index.Open(ctx, store, index.Options{Dimension: 2})
	require.NoError(t, err)
	assert.True(t, ix.Corrupt())
	assert.Equal(t, 1, ix.Count())

	n, err := ix.Insert(ctx, []domain.EmbeddingRecord{{
		ChunkID:        "Boyacá__Desarrollo__1",
		Text:           "Barreiro fue capturado.",
		ContentVector:  []float32{1, 0},
		CategoryVector: []float32{0, 1},
	}})
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	assert.Zero(t, n)
}

func TestSeedFromSnapshot_MissingSnapshotStartsEmpty(t *testing.T) {
	deps := &Dependencies{
		Config:    testConfig(),
		Logger:    zap.NewNop(),
		Snapshots: storage.NewSnapshotter(objectMap{}, "snapshots", zap.NewNop()),
	}

	store, err := deps.seedFromSnapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}
