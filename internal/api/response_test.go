package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		body   string
	}{
		{
			name:   "success wraps data",
			write:  func(w http.ResponseWriter) { Success(w, http.StatusAccepted, map[string]string{"job_id": "j-1"}) },
			status: http.StatusAccepted,
			body:   `{"data":{"job_id":"j-1"}}`,
		},
		{
			name:   "error carries message",
			write:  func(w http.ResponseWriter) { Error(w, http.StatusBadRequest, "question is required") },
			status: http.StatusBadRequest,
			body:   `{"error":"question is required"}`,
		},
		{
			name:   "raw json",
			write:  func(w http.ResponseWriter) { JSON(w, http.StatusOK, map[string]int{"count": 3}) },
			status: http.StatusOK,
			body:   `{"count":3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestJSON_NoBody(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSuccess_DecodesAsSuccessResponse(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusOK, map[string]any{"strategy": "rerank", "tokens_used": 42})

	var result SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "rerank", data["strategy"])
	assert.Equal(t, float64(42), data["tokens_used"])
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", domain.ErrEmptyQuestion, http.StatusBadRequest},
		{"request validation error", &ValidationError{Message: "validation failed"}, http.StatusBadRequest},
		{"not found error", domain.ErrEnrichmentJobNotFound, http.StatusNotFound},
		{"unauthorized error", domain.NewDomainError(domain.ErrCodeUnauthorized, "unauthorized"), http.StatusUnauthorized},
		{"fetch unavailable", domain.Wrap(domain.ErrFetchUnavailable, assert.AnError), http.StatusServiceUnavailable},
		{"embedding unavailable", domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{"oracle unavailable", domain.ErrOracleUnavailable, http.StatusServiceUnavailable},
		{"generator unavailable", domain.ErrGeneratorUnavailable, http.StatusServiceUnavailable},
		{"index corrupt", domain.ErrIndexCorrupt, http.StatusInternalServerError},
		{"internal error", domain.NewDomainError(domain.ErrCodeInternalError, "internal"), http.StatusInternalServerError},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DomainErrorToHTTP(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrEnrichmentJobNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "not found")
	assert.Equal(t, domain.ErrCodeNotFound, result.Code)
}

func TestHandleError_HidesServerCause(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.Wrap(domain.ErrEmbeddingUnavailable, errors.New("dial tcp 10.0.0.1:443: refused")))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "embedding service unavailable", result.Error)
	assert.Equal(t, domain.ErrCodeEmbeddingUnavailable, result.Code)
}

func TestHandleError_NonDomain(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "internal error", result.Error)
	assert.Equal(t, domain.ErrCodeInternalError, result.Code)
}

func TestHandleError_ValidationFields(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, &ValidationError{Message: "validation failed", Fields: map[string]string{"question": "question is required"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.ErrCodeValidation, result.Code)
	assert.Equal(t, "question is required", result.Fields["question"])
}
