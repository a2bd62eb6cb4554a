package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"go.uber.org/zap"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	// DefaultBatchSize is how many jobs one poll claims
	DefaultBatchSize = 10
)

// EnrichmentJobRepository defines the interface for enrichment job persistence
type EnrichmentJobRepository interface {
	// ClaimPending moves pending jobs to processing and returns them
	ClaimPending(ctx context.Context, limit int) ([]*domain.EnrichmentJob, error)

	// Complete marks a job completed with the number of chunks it added
	Complete(ctx context.Context, id string, chunksAdded int) error

	// UpdateStatus updates the status of an enrichment job
	UpdateStatus(ctx context.Context, id string, status domain.EnrichmentJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error
}

// QueryEnricher fetches and indexes the document for a search query
type QueryEnricher interface {
	EnrichQuery(ctx context.Context, query string) (int, error)
}

// EnrichmentWorker processes queued enrichment jobs
type EnrichmentWorker struct {
	repo      EnrichmentJobRepository
	enricher  QueryEnricher
	batchSize int
	logger    *zap.Logger
}

// NewEnrichmentWorker creates a new EnrichmentWorker instance
func NewEnrichmentWorker(repo EnrichmentJobRepository, enricher QueryEnricher, logger *zap.Logger) *EnrichmentWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrichmentWorker{
		repo:      repo,
		enricher:  enricher,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EnrichmentWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing pending enrichment jobs", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("error processing job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	return nil
}

func (w *EnrichmentWorker) processJob(ctx context.Context, job *domain.EnrichmentJob) error {
	logger := w.logger.With(zap.String("job_id", job.ID), zap.String("query", job.Query))
	logger.Info("processing enrichment job")

	added, err := w.enricher.EnrichQuery(ctx, job.Query)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.Complete(ctx, job.ID, added); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	logger.Info("enrichment job completed", zap.Int("chunks_added", added))
	return nil
}

// handleJobFailure requeues the job until it has used MaxRetries attempts
func (w *EnrichmentWorker) handleJobFailure(ctx context.Context, job *domain.EnrichmentJob, jobErr error) error {
	logger := w.logger.With(zap.String("job_id", job.ID))
	logger.Warn("enrichment job failed", zap.Error(jobErr))

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		logger.Warn("job exceeded max retries, marking as failed", zap.Int("max_retries", MaxRetries))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.EnrichmentJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	logger.Info("job will be retried", zap.Int32("attempt", job.Retries+1), zap.Int("max_retries", MaxRetries))
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EnrichmentJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
