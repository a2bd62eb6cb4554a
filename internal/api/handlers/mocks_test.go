package handlers

import (
	"context"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/pagination"
	"github.com/stretchr/testify/mock"
)

type MockQuestionAnswerer struct {
	mock.Mock
}

func (m *MockQuestionAnswerer) AnswerQuestion(ctx context.Context, question string) (*domain.Answer, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

type MockDocumentEnricher struct {
	mock.Mock
}

func (m *MockDocumentEnricher) Enrich(ctx context.Context, doc *domain.Document) (int, error) {
	args := m.Called(ctx, doc)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentEnricher) EnrichQuery(ctx context.Context, query string) (int, error) {
	args := m.Called(ctx, query)
	return args.Int(0), args.Error(1)
}

type MockEnrichmentJobStore struct {
	mock.Mock
}

func (m *MockEnrichmentJobStore) Create(ctx context.Context, job *domain.EnrichmentJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockEnrichmentJobStore) GetByID(ctx context.Context, id string) (*domain.EnrichmentJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EnrichmentJob), args.Error(1)
}

func (m *MockEnrichmentJobStore) List(ctx context.Context, status domain.EnrichmentJobStatus, cursor *pagination.Cursor, limit int) (pagination.Page[*domain.EnrichmentJob], error) {
	args := m.Called(ctx, status, cursor, limit)
	return args.Get(0).(pagination.Page[*domain.EnrichmentJob]), args.Error(1)
}

type stubIndex struct {
	count, dimension int
	corrupt          bool
}

func (s stubIndex) Count() int     { return s.count }
func (s stubIndex) Dimension() int { return s.dimension }
func (s stubIndex) Corrupt() bool  { return s.corrupt }
