package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Name  string   `json:"name" validate:"required"`
	Tags  []string `json:"tags" validate:"max=2"`
	Other string   `json:"other" validate:"required_without=Name"`
}

func TestValidateStruct_Valid(t *testing.T) {
	err := ValidateStruct(&testRequest{Name: "a", Tags: []string{"x"}})
	assert.NoError(t, err)
}

func TestValidateStruct_ReportsJSONNames(t *testing.T) {
	err := ValidateStruct(&testRequest{Tags: []string{"a", "b", "c"}})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name is required", verr.Fields["name"])
	assert.Equal(t, "tags must be at most 2", verr.Fields["tags"])
	assert.Equal(t, "other is required when Name is missing", verr.Fields["other"])
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))

	var dst testRequest
	err := DecodeAndValidate(req, &dst)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invalid request body", verr.Message)
}

func TestDecodeAndValidate_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))

	var dst testRequest
	require.NoError(t, DecodeAndValidate(req, &dst))
	assert.Equal(t, "x", dst.Name)
}
