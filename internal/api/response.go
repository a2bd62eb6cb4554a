package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/tutorai/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeFetchUnavailable,
		domain.ErrCodeEmbeddingUnavailable,
		domain.ErrCodeOracleUnavailable,
		domain.ErrCodeGeneratorUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeIndexCorrupt, domain.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an appropriate error response based on the error type.
// Server-side failures do not echo their cause to the client.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *ValidationError
	var domainErr *domain.DomainError
	switch {
	case errors.As(err, &validationErr):
		resp.Code = domain.ErrCodeValidation
		resp.Fields = validationErr.Fields
	case errors.As(err, &domainErr):
		resp.Code = domainErr.Code
		if status >= http.StatusInternalServerError {
			resp.Error = domainErr.Message
		}
	default:
		resp.Code = domain.ErrCodeInternalError
		resp.Error = "internal error"
	}

	JSON(w, status, resp)
}
