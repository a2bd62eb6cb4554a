// Package index implements the dual-channel vector index: content and
// category vectors co-indexed by ordinal with an id/text side table.
//
// Writes are serialized by a single mutex and persisted through a Store
// before they become visible. Readers load an immutable snapshot pointer and
// never block on writers.
package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"go.uber.org/zap"
)

// Store persists index records. Append must be atomic: either every record
// is stored at ordinals start..start+len-1 or nothing is.
type Store interface {
	// Load returns all records in ordinal order. When the stored artifacts
	// disagree it returns the consistent prefix with an error wrapping
	// domain.ErrIndexCorrupt.
	Load(ctx context.Context) ([]domain.EmbeddingRecord, error)
	Append(ctx context.Context, start int, records []domain.EmbeddingRecord) error
}

// Options configures an Index.
type Options struct {
	// Dimension of both channels. Zero adopts the dimension of the first record.
	Dimension int
	Logger    *zap.Logger
}

type snapshot struct {
	ids      []string
	texts    []string
	content  [][]float32
	category [][]float32
	byID     map[string]int
}

func (s *snapshot) extend(records []domain.EmbeddingRecord) *snapshot {
	next := &snapshot{
		ids:      s.ids,
		texts:    s.texts,
		content:  s.content,
		category: s.category,
		byID:     maps.Clone(s.byID),
	}
	for _, r := range records {
		next.byID[r.ChunkID] = len(next.ids)
		next.ids = append(next.ids, r.ChunkID)
		next.texts = append(next.texts, r.Text)
		next.content = append(next.content, slices.Clone(r.ContentVector))
		next.category = append(next.category, slices.Clone(r.CategoryVector))
	}
	return next
}

// Index is safe for concurrent use by many readers and writers.
type Index struct {
	store  Store
	logger *zap.Logger

	mu        sync.Mutex
	dimension atomic.Int64
	current   atomic.Pointer[snapshot]
	corrupt   atomic.Bool
	closed    atomic.Bool
}

// Open loads the index from store. A corrupt store opens a read-only index
// holding the consistent prefix; Insert then fails with domain.ErrIndexCorrupt.
func Open(ctx context.Context, store Store, opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ix := &Index{store: store, logger: logger}
	ix.dimension.Store(int64(opts.Dimension))
	ix.current.Store(&snapshot{byID: map[string]int{}})

	records, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexCorrupt) {
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
		ix.corrupt.Store(true)
		logger.Error("index store is corrupt, writes disabled", zap.Error(err), zap.Int("loaded", len(records)))
	}

	valid := records
	for i, r := range records {
		if err := ix.validate(r); err != nil {
			ix.corrupt.Store(true)
			logger.Error("stored record rejected, writes disabled", zap.Int("ordinal", i), zap.Error(err))
			valid = records[:i]
			break
		}
	}

	ix.current.Store(ix.current.Load().extend(valid))
	logger.Info("index opened",
		zap.Int("count", len(valid)),
		zap.Int("dimension", ix.Dimension()),
		zap.Bool("corrupt", ix.corrupt.Load()))

	return ix, nil
}

// Insert appends records whose ids are not yet indexed and returns how many
// were added. Duplicates within the batch keep their first occurrence.
func (ix *Index) Insert(ctx context.Context, records []domain.EmbeddingRecord) (int, error) {
	if ix.closed.Load() {
		return 0, domain.ErrIndexClosed
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.corrupt.Load() {
		return 0, domain.ErrIndexCorrupt
	}

	snap := ix.current.Load()
	fresh := unseen(snap, records)
	if len(fresh) == 0 {
		return 0, nil
	}

	prevDim := ix.dimension.Load()
	for _, r := range fresh {
		if err := ix.validate(r); err != nil {
			ix.dimension.Store(prevDim)
			return 0, err
		}
	}

	err := ix.store.Append(ctx, len(snap.ids), fresh)
	if errors.Is(err, domain.ErrIndexStale) {
		// Another process appended to the store; catch up and retry once.
		if snap, err = ix.reload(ctx, snap); err == nil {
			if fresh = unseen(snap, fresh); len(fresh) == 0 {
				return 0, nil
			}
			err = ix.store.Append(ctx, len(snap.ids), fresh)
		}
	}
	if err != nil {
		if len(ix.current.Load().ids) == 0 {
			ix.dimension.Store(prevDim)
		}
		if errors.Is(err, domain.ErrIndexCorrupt) {
			ix.corrupt.Store(true)
		}
		return 0, fmt.Errorf("failed to persist index records: %w", err)
	}

	ix.current.Store(snap.extend(fresh))
	ix.logger.Debug("index records inserted", zap.Int("inserted", len(fresh)), zap.Int("count", len(snap.ids)+len(fresh)))
	return len(fresh), nil
}

// unseen drops records already in snap and duplicates within records,
// keeping the first occurrence.
func unseen(snap *snapshot, records []domain.EmbeddingRecord) []domain.EmbeddingRecord {
	fresh := make([]domain.EmbeddingRecord, 0, len(records))
	batch := make(map[string]bool, len(records))
	for _, r := range records {
		if _, exists := snap.byID[r.ChunkID]; exists || batch[r.ChunkID] {
			continue
		}
		batch[r.ChunkID] = true
		fresh = append(fresh, r)
	}
	return fresh
}

// reload extends snap with the records the store gained since it was built.
// The stored prefix must match snap; otherwise the store is corrupt.
func (ix *Index) reload(ctx context.Context, snap *snapshot) (*snapshot, error) {
	records, err := ix.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) < len(snap.ids) {
		return nil, fmt.Errorf("store holds %d records, index %d: %w", len(records), len(snap.ids), domain.ErrIndexCorrupt)
	}
	for i, id := range snap.ids {
		if records[i].ChunkID != id {
			return nil, fmt.Errorf("ordinal %d holds %s, index has %s: %w", i, records[i].ChunkID, id, domain.ErrIndexCorrupt)
		}
	}
	tail := records[len(snap.ids):]
	for _, r := range tail {
		if err := ix.validate(r); err != nil {
			return nil, domain.Wrap(domain.ErrIndexCorrupt, err)
		}
	}

	next := snap.extend(tail)
	ix.current.Store(next)
	ix.logger.Info("index reloaded from store", zap.Int("added", len(tail)), zap.Int("count", len(next.ids)))
	return next, nil
}

// validate checks a record against the index dimension, adopting the
// record's dimension when none is set yet.
func (ix *Index) validate(r domain.EmbeddingRecord) error {
	dim := int(ix.dimension.Load())
	if dim == 0 {
		dim = len(r.ContentVector)
	}
	if dim == 0 {
		return fmt.Errorf("record %s has empty vectors: %w", r.ChunkID, domain.ErrDimensionMismatch)
	}
	if err := domain.ValidateEmbeddingRecord(r, dim); err != nil {
		return err
	}
	if !finite(r.ContentVector) || !finite(r.CategoryVector) {
		return fmt.Errorf("record %s: %w", r.ChunkID, domain.ErrInvalidVector)
	}
	ix.dimension.Store(int64(dim))
	return nil
}

// SearchByVector returns up to topK records by descending inner product with
// the content channel. Ties keep insertion order.
func (ix *Index) SearchByVector(ctx context.Context, query []float32, topK int) ([]domain.RetrievalResult, error) {
	snap, err := ix.readable(query, topK)
	if err != nil {
		return nil, err
	}

	hits := contentHits(snap, query, topK)
	return toResults(snap, hits), nil
}

// SearchWithRerank takes 2*topK content candidates and reorders them by
// (1-w)*content + w*dot(category, query).
func (ix *Index) SearchWithRerank(ctx context.Context, query []float32, topK int, categoryWeight float64) ([]domain.RetrievalResult, error) {
	if categoryWeight < 0 || categoryWeight > 1 || math.IsNaN(categoryWeight) {
		return nil, domain.ErrInvalidCategoryWeight
	}
	snap, err := ix.readable(query, topK)
	if err != nil {
		return nil, err
	}

	candidates := contentHits(snap, query, 2*topK)
	for i := range candidates {
		categoryScore := dot(snap.category[candidates[i].ordinal], query)
		candidates[i].score = (1-categoryWeight)*candidates[i].score + categoryWeight*categoryScore
	}
	sortHits(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	return toResults(snap, candidates), nil
}

func (ix *Index) readable(query []float32, topK int) (*snapshot, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	snap := ix.current.Load()
	if len(snap.ids) == 0 {
		return snap, nil
	}
	if dim := ix.Dimension(); len(query) != dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(query), dim, domain.ErrDimensionMismatch)
	}
	return snap, nil
}

// Count returns the number of indexed records.
func (ix *Index) Count() int {
	return len(ix.current.Load().ids)
}

// Dimension returns the vector dimension, or zero before the first record.
func (ix *Index) Dimension() int {
	return int(ix.dimension.Load())
}

// Corrupt reports whether writes are refused because the store was inconsistent.
func (ix *Index) Corrupt() bool {
	return ix.corrupt.Load()
}

// Contains reports whether id is indexed.
func (ix *Index) Contains(id string) bool {
	_, ok := ix.current.Load().byID[id]
	return ok
}

// Snapshot is a read-only export of the index at one point in time.
// Its slices are shared with the index and must not be modified.
type Snapshot struct {
	Dimension int
	IDs       []string
	Texts     []string
	Content   [][]float32
	Category  [][]float32
}

// Records converts the snapshot back into insertable records.
func (s Snapshot) Records() []domain.EmbeddingRecord {
	out := make([]domain.EmbeddingRecord, len(s.IDs))
	for i := range s.IDs {
		out[i] = domain.EmbeddingRecord{
			ChunkID:        s.IDs[i],
			Text:           s.Texts[i],
			ContentVector:  s.Content[i],
			CategoryVector: s.Category[i],
		}
	}
	return out
}

// Snapshot exports the current state.
func (ix *Index) Snapshot() Snapshot {
	snap := ix.current.Load()
	return Snapshot{
		Dimension: ix.Dimension(),
		IDs:       snap.ids[:len(snap.ids):len(snap.ids)],
		Texts:     snap.texts[:len(snap.texts):len(snap.texts)],
		Content:   snap.content[:len(snap.content):len(snap.content)],
		Category:  snap.category[:len(snap.category):len(snap.category)],
	}
}

// Close stops accepting writes. Searches keep working on the last snapshot.
func (ix *Index) Close() error {
	ix.closed.Store(true)
	return nil
}

type hit struct {
	ordinal int
	score   float64
}

func contentHits(snap *snapshot, query []float32, limit int) []hit {
	hits := make([]hit, len(snap.content))
	for i, v := range snap.content {
		hits[i] = hit{ordinal: i, score: dot(v, query)}
	}
	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func sortHits(hits []hit) {
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.ordinal, b.ordinal)
	})
}

func toResults(snap *snapshot, hits []hit) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = domain.RetrievalResult{
			ChunkID: snap.ids[h.ordinal],
			Content: snap.texts[h.ordinal],
			Score:   h.score,
			Rank:    i + 1,
		}
	}
	return results
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
