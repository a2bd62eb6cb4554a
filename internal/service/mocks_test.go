package service

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) IsSufficient(ctx context.Context, question string, chunks []string) (bool, error) {
	args := m.Called(ctx, question, chunks)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssistant) Refine(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

func (m *MockAssistant) Answer(ctx context.Context, question string, chunks []string) (string, error) {
	args := m.Called(ctx, question, chunks)
	return args.String(0), args.Error(1)
}

type MockQuestionEnricher struct {
	mock.Mock
}

func (m *MockQuestionEnricher) EnrichForQuestion(ctx context.Context, question string) (int, error) {
	args := m.Called(ctx, question)
	return args.Int(0), args.Error(1)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Insert(ctx context.Context, records []domain.EmbeddingRecord) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) SearchByVector(ctx context.Context, query []float32, topK int) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalResult), args.Error(1)
}

func (m *MockVectorIndex) SearchWithRerank(ctx context.Context, query []float32, topK int, categoryWeight float64) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, query, topK, categoryWeight)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalResult), args.Error(1)
}

func (m *MockVectorIndex) Count() int {
	args := m.Called()
	return args.Int(0)
}

type MockSourceFetcher struct {
	mock.Mock
}

func (m *MockSourceFetcher) FetchDocument(ctx context.Context, query string) (*domain.Document, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

type MockQueryDeriver struct {
	mock.Mock
}

func (m *MockQueryDeriver) DeriveSearchQuery(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

// bagEmbedder hashes words into buckets, giving deterministic unit vectors
// where texts sharing words score higher.
type bagEmbedder struct {
	dim int
}

func (e bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(e.dim)]++
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		v[0] = 1
		return v, nil
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v, nil
}

func (e bagEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
