package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/index"
	"go.uber.org/zap"
)

const (
	contentObject  = "content.f32"
	categoryObject = "category.f32"
	entriesObject  = "entries.json"
	latestObject   = "latest.json"
)

// ObjectStore is the subset of S3Client the snapshot mirror needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Manifest describes one pushed snapshot. latest.json holds the newest one.
type Manifest struct {
	Version   string    `json:"version"`
	Count     int       `json:"count"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

type entry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Snapshotter mirrors the index to object storage as three artifacts under a
// versioned prefix: both channels as little-endian float32 matrices and the
// id/text side table as JSON.
type Snapshotter struct {
	store  ObjectStore
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

func NewSnapshotter(store ObjectStore, prefix string, logger *zap.Logger) *Snapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshotter{store: store, prefix: prefix, now: time.Now, logger: logger}
}

// Push uploads snap and then points latest.json at it. A reader never sees a
// manifest whose artifacts are missing.
func (s *Snapshotter) Push(ctx context.Context, snap index.Snapshot) (*Manifest, error) {
	createdAt := s.now().UTC()
	m := &Manifest{
		Version:   fmt.Sprintf("%s-%d", createdAt.Format("20060102T150405Z"), len(snap.IDs)),
		Count:     len(snap.IDs),
		Dimension: snap.Dimension,
		CreatedAt: createdAt,
	}

	content, err := encodeMatrix(snap.Content)
	if err != nil {
		return nil, err
	}
	category, err := encodeMatrix(snap.Category)
	if err != nil {
		return nil, err
	}
	entries := make([]entry, len(snap.IDs))
	for i := range snap.IDs {
		entries[i] = entry{ID: snap.IDs[i], Text: snap.Texts[i]}
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entries: %w", err)
	}
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	uploads := []struct {
		name        string
		body        []byte
		contentType string
	}{
		{contentObject, content, "application/octet-stream"},
		{categoryObject, category, "application/octet-stream"},
		{entriesObject, entriesJSON, "application/json"},
	}
	for _, u := range uploads {
		if err := s.store.PutObject(ctx, s.key(m.Version, u.name), u.body, u.contentType); err != nil {
			return nil, err
		}
	}
	if err := s.store.PutObject(ctx, s.key("", latestObject), manifestJSON, "application/json"); err != nil {
		return nil, err
	}

	s.logger.Info("index snapshot pushed",
		zap.String("version", m.Version),
		zap.Int("count", m.Count),
		zap.Int("dimension", m.Dimension))
	return m, nil
}

// Pull downloads the latest snapshot. When the artifacts disagree in length
// it returns the consistent prefix with an error wrapping domain.ErrIndexCorrupt.
func (s *Snapshotter) Pull(ctx context.Context) ([]domain.EmbeddingRecord, *Manifest, error) {
	raw, err := s.store.GetObject(ctx, s.key("", latestObject))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil, domain.ErrSnapshotNotFound
		}
		return nil, nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, domain.Wrap(domain.ErrIndexCorrupt, fmt.Errorf("failed to decode manifest: %w", err))
	}

	objects := make(map[string][]byte, 3)
	for _, name := range []string{contentObject, categoryObject, entriesObject} {
		data, err := s.store.GetObject(ctx, s.key(m.Version, name))
		if err != nil {
			return nil, nil, err
		}
		objects[name] = data
	}

	var entries []entry
	if err := json.Unmarshal(objects[entriesObject], &entries); err != nil {
		return nil, nil, domain.Wrap(domain.ErrIndexCorrupt, fmt.Errorf("failed to decode entries: %w", err))
	}
	content, contentRows := decodeMatrix(objects[contentObject], m.Dimension)
	category, categoryRows := decodeMatrix(objects[categoryObject], m.Dimension)

	n := min(m.Count, len(entries), contentRows, categoryRows)
	records := make([]domain.EmbeddingRecord, n)
	for i := range records {
		records[i] = domain.EmbeddingRecord{
			ChunkID:        entries[i].ID,
			Text:           entries[i].Text,
			ContentVector:  content[i],
			CategoryVector: category[i],
		}
	}

	if n != m.Count || n != len(entries) || n != contentRows || n != categoryRows {
		err := fmt.Errorf("manifest count %d, entries %d, content rows %d, category rows %d",
			m.Count, len(entries), contentRows, categoryRows)
		s.logger.Error("index snapshot is inconsistent", zap.String("version", m.Version), zap.Error(err))
		return records, &m, domain.Wrap(domain.ErrIndexCorrupt, err)
	}

	s.logger.Info("index snapshot pulled", zap.String("version", m.Version), zap.Int("count", n))
	return records, &m, nil
}

func (s *Snapshotter) key(version, name string) string {
	return path.Join(s.prefix, version, name)
}

func encodeMatrix(rows [][]float32) ([]byte, error) {
	var buf bytes.Buffer
	for _, row := range rows {
		if err := binary.Write(&buf, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("failed to encode vectors: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// decodeMatrix splits data into rows of dim floats. A trailing partial row
// is ignored; the returned count covers complete rows only.
func decodeMatrix(data []byte, dim int) ([][]float32, int) {
	if dim <= 0 {
		return nil, 0
	}
	rowBytes := dim * 4
	n := len(data) / rowBytes
	rows := make([][]float32, n)
	for i := range rows {
		row := make([]float32, dim)
		_ = binary.Read(bytes.NewReader(data[i*rowBytes:(i+1)*rowBytes]), binary.LittleEndian, row)
		rows[i] = row
	}
	return rows, n
}
