package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const enrichmentJobColumns = `id, query, status, retries, error, chunks_added, created_at, processed_at`

type EnrichmentJobRepository struct {
	db dbtx
}

func NewEnrichmentJobRepository(pool *pgxpool.Pool) *EnrichmentJobRepository {
	return &EnrichmentJobRepository{db: pool}
}

func NewEnrichmentJobRepositoryWithTx(tx pgx.Tx) *EnrichmentJobRepository {
	return &EnrichmentJobRepository{db: tx}
}

func (r *EnrichmentJobRepository) Create(ctx context.Context, job *domain.EnrichmentJob) error {
	if err := domain.ValidateEnrichmentJob(job); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO enrichment_jobs (id, query, status, retries, error, chunks_added, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.Query, job.Status, job.Retries, nullableString(job.Error), job.ChunksAdded, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *EnrichmentJobRepository) GetByID(ctx context.Context, id string) (*domain.EnrichmentJob, error) {
	job, err := scanEnrichmentJob(r.db.QueryRow(ctx,
		`SELECT `+enrichmentJobColumns+` FROM enrichment_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEnrichmentJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by status, starting
// after cursor.
func (r *EnrichmentJobRepository) List(ctx context.Context, status domain.EnrichmentJobStatus, cursor *pagination.Cursor, limit int) (pagination.Page[*domain.EnrichmentJob], error) {
	limit = pagination.ClampLimit(limit)

	query := `SELECT ` + enrichmentJobColumns + ` FROM enrichment_jobs WHERE ($1::text = '' OR status = $1)`
	args := []any{string(status)}
	if cursor != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return pagination.Page[*domain.EnrichmentJob]{}, err
	}
	defer rows.Close()

	var jobs []*domain.EnrichmentJob
	for rows.Next() {
		job, err := scanEnrichmentJob(rows)
		if err != nil {
			return pagination.Page[*domain.EnrichmentJob]{}, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[*domain.EnrichmentJob]{}, err
	}

	return pagination.Build(jobs, limit, func(j *domain.EnrichmentJob) pagination.Cursor {
		return pagination.Cursor{ID: j.ID, CreatedAt: j.CreatedAt}
	}), nil
}

// ClaimPending moves up to limit pending jobs to processing and returns them,
// oldest first. Concurrent claimers never receive the same job.
func (r *EnrichmentJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EnrichmentJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM enrichment_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE enrichment_jobs
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE enrichment_jobs.id = cte.id
		 RETURNING enrichment_jobs.id, enrichment_jobs.query, enrichment_jobs.status, enrichment_jobs.retries,
		           enrichment_jobs.error, enrichment_jobs.chunks_added, enrichment_jobs.created_at, enrichment_jobs.processed_at`,
		domain.EnrichmentJobStatusPending, limit, domain.EnrichmentJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.EnrichmentJob
	for rows.Next() {
		job, err := scanEnrichmentJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING order is unspecified.
	slices.SortFunc(jobs, func(a, b *domain.EnrichmentJob) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

func (r *EnrichmentJobRepository) UpdateStatus(ctx context.Context, id string, status domain.EnrichmentJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.EnrichmentJobStatusCompleted || status == domain.EnrichmentJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE enrichment_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEnrichmentJobNotFound
	}
	return nil
}

// Complete marks a job completed with the number of chunks it added.
func (r *EnrichmentJobRepository) Complete(ctx context.Context, id string, chunksAdded int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE enrichment_jobs
		 SET status = $1, error = NULL, chunks_added = $2, processed_at = $3
		 WHERE id = $4`,
		domain.EnrichmentJobStatusCompleted, chunksAdded, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEnrichmentJobNotFound
	}
	return nil
}

func (r *EnrichmentJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE enrichment_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEnrichmentJobNotFound
	}
	return nil
}

func scanEnrichmentJob(row pgx.Row) (*domain.EnrichmentJob, error) {
	var job domain.EnrichmentJob
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.Query, &job.Status, &job.Retries, &errMsg, &job.ChunksAdded, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
