package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrOrdinalConflict reports that the table grew under another writer.
var ErrOrdinalConflict = errors.New("chunk index ordinal conflict")

// ChunkIndexRepository is the durable index.Store backed by the chunk_index
// table. Every ordinal is one row, so id, text and both vectors commit together.
type ChunkIndexRepository struct {
	db dbtx
	tx *TxRunner
}

func NewChunkIndexRepository(pool *pgxpool.Pool) *ChunkIndexRepository {
	return &ChunkIndexRepository{db: pool, tx: NewTxRunner(pool)}
}

// Load returns every record in ordinal order. A gap in the ordinals, or a
// row whose channels disagree in dimension, ends the consistent prefix.
func (r *ChunkIndexRepository) Load(ctx context.Context) ([]domain.EmbeddingRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ordinal, chunk_id, text, content_embedding, category_embedding
		 FROM chunk_index
		 ORDER BY ordinal ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk index: %w", err)
	}
	defer rows.Close()

	var records []domain.EmbeddingRecord
	for rows.Next() {
		var (
			ordinal           int
			rec               domain.EmbeddingRecord
			content, category pgvector.Vector
		)
		if err := rows.Scan(&ordinal, &rec.ChunkID, &rec.Text, &content, &category); err != nil {
			return nil, fmt.Errorf("failed to scan chunk index row: %w", err)
		}
		if ordinal != len(records) {
			return records, domain.Wrap(domain.ErrIndexCorrupt,
				fmt.Errorf("expected ordinal %d, found %d", len(records), ordinal))
		}
		rec.ContentVector = content.Slice()
		rec.CategoryVector = category.Slice()
		if len(rec.ContentVector) != len(rec.CategoryVector) {
			return records, domain.Wrap(domain.ErrIndexCorrupt,
				fmt.Errorf("ordinal %d has content dimension %d and category dimension %d",
					ordinal, len(rec.ContentVector), len(rec.CategoryVector)))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk index: %w", err)
	}

	return records, nil
}

// Append stores records at ordinals start.. in one transaction.
func (r *ChunkIndexRepository) Append(ctx context.Context, start int, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var next int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(ordinal) + 1, 0) FROM chunk_index`).Scan(&next); err != nil {
			return fmt.Errorf("failed to read chunk index length: %w", err)
		}
		if next != start {
			return fmt.Errorf("%w: table holds %d rows, append starts at %d: %w", ErrOrdinalConflict, next, start, domain.ErrIndexStale)
		}

		batch := &pgx.Batch{}
		for i, rec := range records {
			batch.Queue(
				`INSERT INTO chunk_index (ordinal, chunk_id, text, content_embedding, category_embedding)
				 VALUES ($1, $2, $3, $4, $5)`,
				start+i,
				rec.ChunkID,
				rec.Text,
				pgvector.NewVector(rec.ContentVector),
				pgvector.NewVector(rec.CategoryVector),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunk index rows: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored rows.
func (r *ChunkIndexRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunk_index`).Scan(&n)
	return n, err
}
