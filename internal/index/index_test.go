package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) ([]domain.EmbeddingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EmbeddingRecord), args.Error(1)
}

func (m *MockStore) Append(ctx context.Context, start int, records []domain.EmbeddingRecord) error {
	args := m.Called(ctx, start, records)
	return args.Error(0)
}

// unit returns a normalized 3-d vector.
func unit(x, y, z float32) []float32 {
	n := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	return []float32{x / n, y / n, z / n}
}

func record(id string, content, category []float32) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{ChunkID: id, Text: "text-" + id, ContentVector: content, CategoryVector: category}
}

func openMemory(t *testing.T, records ...domain.EmbeddingRecord) *Index {
	t.Helper()
	ix, err := Open(context.Background(), NewMemoryStore(records...), Options{Dimension: 3, Logger: zap.NewNop()})
	require.NoError(t, err)
	return ix
}

func threeRecords() []domain.EmbeddingRecord {
	return []domain.EmbeddingRecord{
		record("a", unit(1, 0, 0), unit(0, 0, 1)),
		record("b", unit(1, 1, 0), unit(1, 0, 0)),
		record("c", unit(0, 1, 0), unit(0, 1, 0)),
	}
}

func TestIndex_EmptySearchReturnsEmpty(t *testing.T) {
	ix := openMemory(t)

	results, err := ix.SearchByVector(context.Background(), unit(1, 0, 0), 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	reranked, err := ix.SearchWithRerank(context.Background(), unit(1, 0, 0), 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, reranked)
}

func TestIndex_InsertSkipsExistingIDs(t *testing.T) {
	ctx := context.Background()
	ix := openMemory(t)

	n, err := ix.Insert(ctx, threeRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	again := append(threeRecords(), record("d", unit(0, 0, 1), unit(0, 0, 1)))
	n, err = ix.Insert(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, ix.Count())
	assert.True(t, ix.Contains("d"))
}

func TestIndex_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	once := openMemory(t)
	twice := openMemory(t)

	_, err := once.Insert(ctx, threeRecords())
	require.NoError(t, err)
	_, err = twice.Insert(ctx, threeRecords())
	require.NoError(t, err)
	n, err := twice.Insert(ctx, threeRecords())
	require.NoError(t, err)
	assert.Zero(t, n)

	q := unit(1, 0.5, 0)
	a, err := once.SearchByVector(ctx, q, 3)
	require.NoError(t, err)
	b, err := twice.SearchByVector(ctx, q, 3)
	require.NoError(t, err)

	assert.Equal(t, once.Count(), twice.Count())
	assert.Equal(t, a, b)
}

func TestIndex_InsertDeduplicatesWithinBatch(t *testing.T) {
	ix := openMemory(t)

	n, err := ix.Insert(context.Background(), []domain.EmbeddingRecord{
		record("a", unit(1, 0, 0), unit(1, 0, 0)),
		{ChunkID: "a", Text: "other", ContentVector: unit(0, 1, 0), CategoryVector: unit(0, 1, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := ix.SearchByVector(context.Background(), unit(1, 0, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, "text-a", results[0].Content)
}

func TestIndex_SearchByVectorRanks(t *testing.T) {
	ix := openMemory(t, threeRecords()...)

	results, err := ix.SearchByVector(context.Background(), unit(1, 0, 0), 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, 1, results[0].Rank)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.Equal(t, 2, results[1].Rank)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestIndex_SearchTiesKeepInsertionOrder(t *testing.T) {
	ix := openMemory(t,
		record("x", unit(1, 0, 0), unit(1, 0, 0)),
		record("y", unit(1, 0, 0), unit(1, 0, 0)),
		record("z", unit(1, 0, 0), unit(1, 0, 0)),
	)

	results, err := ix.SearchByVector(context.Background(), unit(1, 0, 0), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, []string{results[0].ChunkID, results[1].ChunkID, results[2].ChunkID})
}

func TestIndex_RerankWithZeroWeightMatchesSearch(t *testing.T) {
	ix := openMemory(t, threeRecords()...)
	ctx := context.Background()

	for _, q := range [][]float32{unit(1, 0, 0), unit(0, 1, 0), unit(1, 1, 1), unit(0.2, 0.9, 0.1)} {
		for k := 1; k <= 3; k++ {
			plain, err := ix.SearchByVector(ctx, q, k)
			require.NoError(t, err)
			reranked, err := ix.SearchWithRerank(ctx, q, k, 0)
			require.NoError(t, err)
			assert.Equal(t, plain, reranked)
		}
	}
}

func TestIndex_RerankUsesCategoryChannel(t *testing.T) {
	ix := openMemory(t, threeRecords()...)

	// With full category weight, "b" (category along x) beats "a" (category along z).
	results, err := ix.SearchWithRerank(context.Background(), unit(1, 0, 0), 1, 1)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestIndex_SearchValidation(t *testing.T) {
	ix := openMemory(t, threeRecords()...)
	ctx := context.Background()

	_, err := ix.SearchByVector(ctx, unit(1, 0, 0), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTopK)

	_, err = ix.SearchByVector(ctx, []float32{1, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = ix.SearchWithRerank(ctx, unit(1, 0, 0), 3, 1.5)
	assert.ErrorIs(t, err, domain.ErrInvalidCategoryWeight)

	_, err = ix.SearchWithRerank(ctx, unit(1, 0, 0), 3, -0.1)
	assert.ErrorIs(t, err, domain.ErrInvalidCategoryWeight)
}

func TestIndex_InsertRejectsBadVectors(t *testing.T) {
	ix := openMemory(t)
	ctx := context.Background()

	_, err := ix.Insert(ctx, []domain.EmbeddingRecord{record("a", []float32{1, 0}, []float32{1, 0})})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	nan := float32(math.NaN())
	_, err = ix.Insert(ctx, []domain.EmbeddingRecord{record("a", []float32{nan, 0, 0}, unit(1, 0, 0))})
	assert.ErrorIs(t, err, domain.ErrInvalidVector)

	assert.Zero(t, ix.Count())
}

func TestIndex_AdoptsDimensionFromFirstInsert(t *testing.T) {
	ix, err := Open(context.Background(), NewMemoryStore(), Options{})
	require.NoError(t, err)
	assert.Zero(t, ix.Dimension())

	_, err = ix.Insert(context.Background(), []domain.EmbeddingRecord{record("a", []float32{1, 0}, []float32{0, 1})})
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Dimension())
}

func TestIndex_RejectsEmptyVectorsBeforeDimensionIsKnown(t *testing.T) {
	ix, err := Open(context.Background(), NewMemoryStore(), Options{})
	require.NoError(t, err)

	_, err = ix.Insert(context.Background(), []domain.EmbeddingRecord{record("a", nil, nil)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Zero(t, ix.Count())
	assert.Zero(t, ix.Dimension())

	_, err = ix.Insert(context.Background(), []domain.EmbeddingRecord{record("a", []float32{1, 0}, []float32{0, 1})})
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Dimension())
}

func TestIndex_FailedAppendLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("Load", mock.Anything).Return(threeRecords(), nil)
	store.On("Append", mock.Anything, 3, mock.Anything).Return(errors.New("connection reset"))

	ix, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)

	before, err := ix.SearchByVector(ctx, unit(0, 0, 1), 5)
	require.NoError(t, err)

	n, err := ix.Insert(ctx, []domain.EmbeddingRecord{record("d", unit(0, 0, 1), unit(0, 0, 1))})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, ix.Count())
	assert.False(t, ix.Contains("d"))
	assert.False(t, ix.Corrupt())

	after, err := ix.SearchByVector(ctx, unit(0, 0, 1), 5)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	store.AssertExpectations(t)
}

func TestIndex_CorruptStoreRefusesWrites(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	prefix := threeRecords()[:2]
	store.On("Load", mock.Anything).Return(prefix, fmt.Errorf("ids=3 texts=2: %w", domain.ErrIndexCorrupt))

	ix, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)

	assert.True(t, ix.Corrupt())
	assert.Equal(t, 2, ix.Count())

	_, err = ix.Insert(ctx, []domain.EmbeddingRecord{record("d", unit(0, 0, 1), unit(0, 0, 1))})
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)

	results, err := ix.SearchByVector(ctx, unit(1, 0, 0), 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestIndex_CorruptMemoryStoreOpensReadOnly(t *testing.T) {
	ctx := context.Background()
	store := NewCorruptMemoryStore(errors.New("entries 1, content rows 2"), threeRecords()[:1]...)

	ix, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)
	assert.True(t, ix.Corrupt())
	assert.Equal(t, 1, ix.Count())

	n, err := ix.Insert(ctx, []domain.EmbeddingRecord{record("d", unit(0, 0, 1), unit(0, 0, 1))})
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	assert.Zero(t, n)
	assert.Equal(t, 1, store.Len())
}

func TestIndex_StoredDimensionMismatchMarksCorrupt(t *testing.T) {
	records := append(threeRecords(), record("bad", []float32{1, 0}, []float32{0, 1}))

	ix, err := Open(context.Background(), NewMemoryStore(records...), Options{Dimension: 3})
	require.NoError(t, err)

	assert.True(t, ix.Corrupt())
	assert.Equal(t, 3, ix.Count())
}

func TestIndex_LoadErrorFailsOpen(t *testing.T) {
	store := new(MockStore)
	store.On("Load", mock.Anything).Return(nil, errors.New("relation does not exist"))

	_, err := Open(context.Background(), store, Options{})
	assert.Error(t, err)
}

func TestIndex_ReopenFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ix, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)
	_, err = ix.Insert(ctx, threeRecords())
	require.NoError(t, err)

	reopened, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Count())
	assert.Equal(t, ix.Snapshot(), reopened.Snapshot())
}

func TestIndex_InsertCatchesUpWithOtherWriter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	first, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)
	second, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)

	_, err = first.Insert(ctx, threeRecords()[:2])
	require.NoError(t, err)

	n, err := second.Insert(ctx, threeRecords()[1:])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, second.Count())
	assert.True(t, second.Contains("a"))
	assert.False(t, second.Corrupt())
	assert.Equal(t, 3, store.Len())
}

func TestIndex_ReloadWithDivergedStoreMarksCorrupt(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("Load", mock.Anything).Return(threeRecords()[:1], nil).Once()
	store.On("Append", mock.Anything, 1, mock.Anything).Return(fmt.Errorf("table holds 2 rows: %w", domain.ErrIndexStale)).Once()
	store.On("Load", mock.Anything).Return([]domain.EmbeddingRecord{threeRecords()[2], threeRecords()[1]}, nil).Once()

	ix, err := Open(ctx, store, Options{Dimension: 3})
	require.NoError(t, err)

	_, err = ix.Insert(ctx, []domain.EmbeddingRecord{record("d", unit(0, 0, 1), unit(0, 0, 1))})
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	assert.True(t, ix.Corrupt())
	assert.Equal(t, 1, ix.Count())
	store.AssertExpectations(t)
}

func TestIndex_SnapshotRecords(t *testing.T) {
	ix := openMemory(t, threeRecords()...)

	snap := ix.Snapshot()
	assert.Equal(t, 3, snap.Dimension)
	assert.Equal(t, []string{"a", "b", "c"}, snap.IDs)
	assert.Equal(t, threeRecords(), snap.Records())
}

func TestIndex_CloseRefusesWrites(t *testing.T) {
	ix := openMemory(t)
	require.NoError(t, ix.Close())

	_, err := ix.Insert(context.Background(), threeRecords())
	assert.ErrorIs(t, err, domain.ErrIndexClosed)
}

func TestIndex_ConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	ctx := context.Background()
	ix := openMemory(t)

	const writes = 200
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			id := fmt.Sprintf("chunk-%d", i)
			_, err := ix.Insert(ctx, []domain.EmbeddingRecord{record(id, unit(1, float32(i%7), 0), unit(0, 1, float32(i%5)))})
			assert.NoError(t, err)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for i := 0; i < writes; i++ {
				results, err := ix.SearchWithRerank(ctx, unit(1, 1, 0), 5, 0.3)
				assert.NoError(t, err)
				for _, res := range results {
					assert.Equal(t, "text-"+res.ChunkID, res.Content)
				}
				count := ix.Count()
				assert.GreaterOrEqual(t, count, last)
				last = count
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, writes, ix.Count())
}
