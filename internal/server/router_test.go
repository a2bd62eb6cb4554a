package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/tutorai/internal/api/handlers"
	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct{}

func (fakeAnswerer) AnswerQuestion(ctx context.Context, question string) (*domain.Answer, error) {
	return &domain.Answer{SessionID: "s", Text: "answer to " + question, Strategy: "base", Attempts: 1}, nil
}

type fakeEnricher struct{}

func (fakeEnricher) Enrich(ctx context.Context, doc *domain.Document) (int, error) {
	return len(doc.Sections), nil
}

func (fakeEnricher) EnrichQuery(ctx context.Context, query string) (int, error) {
	return 2, nil
}

type fakeIndex struct{}

func (fakeIndex) Count() int     { return 9 }
func (fakeIndex) Dimension() int { return 4 }
func (fakeIndex) Corrupt() bool  { return false }

func newTestRouter(token string) http.Handler {
	return NewRouter(RouterConfig{
		APIToken:      token,
		AskHandler:    handlers.NewAskHandler(fakeAnswerer{}),
		EnrichHandler: handlers.NewEnrichHandler(fakeEnricher{}, nil),
		IndexHandler:  handlers.NewIndexHandler(fakeIndex{}),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter("tok")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data["status"])
}

func TestRouter_RequiresToken(t *testing.T) {
	router := newTestRouter("tok")

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/ask", `{"question":"q"}`},
		{http.MethodPost, "/enrich", `{"query":"q"}`},
		{http.MethodGet, "/enrich", ""},
		{http.MethodGet, "/enrich/00000000-0000-0000-0000-000000000000", ""},
		{http.MethodGet, "/index/stats", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_Ask(t *testing.T) {
	router := newTestRouter("tok")

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"¿Qué es un átomo?"}`))
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "answer to ¿Qué es un átomo?")
}

func TestRouter_EnrichInline(t *testing.T) {
	router := newTestRouter("")

	req := httptest.NewRequest(http.MethodPost, "/enrich", strings.NewReader(`{"query":"Átomo"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunks_added":2`)
}

func TestRouter_ListJobsWithoutQueue(t *testing.T) {
	router := newTestRouter("")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/enrich?limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"jobs":[]`)
}

func TestRouter_IndexStats(t *testing.T) {
	router := newTestRouter("")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":9`)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter("")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
