package index

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cloo-solutions/tutorai/internal/domain"
)

// MemoryStore keeps records in process memory. It backs the index when no
// database is configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []domain.EmbeddingRecord
	loadErr error
}

// NewMemoryStore creates a MemoryStore seeded with records.
func NewMemoryStore(records ...domain.EmbeddingRecord) *MemoryStore {
	return &MemoryStore{records: slices.Clone(records)}
}

// NewCorruptMemoryStore creates a MemoryStore seeded with the consistent
// prefix of an inconsistent source. Load reports cause wrapped in
// domain.ErrIndexCorrupt, so an index opened on it refuses writes.
func NewCorruptMemoryStore(cause error, records ...domain.EmbeddingRecord) *MemoryStore {
	s := NewMemoryStore(records...)
	s.loadErr = domain.Wrap(domain.ErrIndexCorrupt, cause)
	return s
}

// Load returns a copy of the stored records.
func (s *MemoryStore) Load(ctx context.Context) ([]domain.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records), s.loadErr
}

// Append stores records at start, which must equal the current length. A
// smaller start means another writer got there first.
func (s *MemoryStore) Append(ctx context.Context, start int, records []domain.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case start < len(s.records):
		return fmt.Errorf("append at ordinal %d, store holds %d: %w", start, len(s.records), domain.ErrIndexStale)
	case start > len(s.records):
		return fmt.Errorf("append at ordinal %d, store holds %d: %w", start, len(s.records), domain.ErrIndexCorrupt)
	}
	s.records = append(s.records, records...)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
