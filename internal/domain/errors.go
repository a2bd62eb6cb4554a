package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError with the same code and message, so a wrapped
// sentinel still satisfies errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap attaches a cause to a sentinel, keeping its code and message.
func Wrap(sentinel *DomainError, err error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"

	ErrCodeFetchUnavailable     = "FETCH_UNAVAILABLE"
	ErrCodeEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	ErrCodeOracleUnavailable    = "ORACLE_UNAVAILABLE"
	ErrCodeGeneratorUnavailable = "GENERATOR_UNAVAILABLE"
	ErrCodeIndexCorrupt         = "INDEX_CORRUPT"
)

// Validation errors
var (
	ErrEmptyQuestion         = NewDomainError(ErrCodeValidation, "question is required")
	ErrEmptyQuery            = NewDomainError(ErrCodeValidation, "query is required")
	ErrInvalidLadder         = NewDomainError(ErrCodeValidation, "invalid strategy ladder")
	ErrInvalidCategoryWeight = NewDomainError(ErrCodeValidation, "category weight must be within [0, 1]")
	ErrInvalidTopK           = NewDomainError(ErrCodeValidation, "top_k must be positive")
	ErrDimensionMismatch     = NewDomainError(ErrCodeValidation, "vector dimension mismatch")
	ErrInvalidVector         = NewDomainError(ErrCodeValidation, "vector contains non-finite values")
	ErrInvalidEnrichmentJob  = NewDomainError(ErrCodeValidation, "invalid enrichment job")
	ErrInvalidDocument       = NewDomainError(ErrCodeValidation, "document must have a title and at least one section")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidCursor         = NewDomainError(ErrCodeValidation, "invalid pagination cursor")
	ErrInvalidJobStatus      = NewDomainError(ErrCodeValidation, "invalid enrichment job status")
)

// Not found errors
var (
	ErrEnrichmentJobNotFound = NewDomainError(ErrCodeNotFound, "enrichment job not found")
	ErrSnapshotNotFound      = NewDomainError(ErrCodeNotFound, "index snapshot not found")
)

// Collaborator errors
var (
	ErrFetchUnavailable     = NewDomainError(ErrCodeFetchUnavailable, "source fetch unavailable")
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding service unavailable")
	ErrOracleUnavailable    = NewDomainError(ErrCodeOracleUnavailable, "sufficiency oracle unavailable")
	ErrGeneratorUnavailable = NewDomainError(ErrCodeGeneratorUnavailable, "answer generator unavailable")
)

// Index errors
var (
	ErrIndexCorrupt = NewDomainError(ErrCodeIndexCorrupt, "index artifacts disagree in length, writes refused")
	ErrIndexClosed  = NewDomainError(ErrCodeInternalError, "index is closed")
	// ErrIndexStale means the store holds records the index has not loaded.
	ErrIndexStale = NewDomainError(ErrCodeInternalError, "index is behind its store")
)
