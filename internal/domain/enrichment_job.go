package domain

import (
	"fmt"
	"time"
)

// EnrichmentJobStatus represents the status of an enrichment job
type EnrichmentJobStatus string

const (
	EnrichmentJobStatusPending    EnrichmentJobStatus = "pending"
	EnrichmentJobStatusProcessing EnrichmentJobStatus = "processing"
	EnrichmentJobStatusCompleted  EnrichmentJobStatus = "completed"
	EnrichmentJobStatusFailed     EnrichmentJobStatus = "failed"
)

// EnrichmentJob is a queued request to fetch and index one source document
type EnrichmentJob struct {
	ID          string
	Query       string
	Status      EnrichmentJobStatus
	Retries     int32
	Error       string
	ChunksAdded int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewEnrichmentJob creates a pending EnrichmentJob
func NewEnrichmentJob(id, query string, createdAt time.Time) *EnrichmentJob {
	return &EnrichmentJob{
		ID:        id,
		Query:     query,
		Status:    EnrichmentJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateEnrichmentJob validates an EnrichmentJob instance
func ValidateEnrichmentJob(j *EnrichmentJob) error {
	if j == nil {
		return fmt.Errorf("enrichment job cannot be nil: %w", ErrInvalidEnrichmentJob)
	}

	if j.ID == "" {
		return fmt.Errorf("enrichment job ID is required: %w", ErrInvalidEnrichmentJob)
	}

	if j.Query == "" {
		return fmt.Errorf("enrichment job Query is required: %w", ErrInvalidEnrichmentJob)
	}

	if !isValidEnrichmentJobStatus(j.Status) {
		return fmt.Errorf("enrichment job Status is invalid: %s: %w", j.Status, ErrInvalidEnrichmentJob)
	}

	if j.Retries < 0 {
		return fmt.Errorf("enrichment job Retries cannot be negative: %w", ErrInvalidEnrichmentJob)
	}

	return nil
}

// ParseEnrichmentJobStatus accepts "" (any status) or one of the known statuses.
func ParseEnrichmentJobStatus(s string) (EnrichmentJobStatus, error) {
	status := EnrichmentJobStatus(s)
	if s != "" && !isValidEnrichmentJobStatus(status) {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidJobStatus)
	}
	return status, nil
}

// isValidEnrichmentJobStatus checks if an EnrichmentJobStatus is valid
func isValidEnrichmentJobStatus(s EnrichmentJobStatus) bool {
	switch s {
	case EnrichmentJobStatusPending, EnrichmentJobStatusProcessing,
		EnrichmentJobStatusCompleted, EnrichmentJobStatusFailed:
		return true
	}
	return false
}
