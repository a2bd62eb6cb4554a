//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/tutorai/internal/api/handlers"
	"github.com/cloo-solutions/tutorai/internal/app"
	"github.com/cloo-solutions/tutorai/internal/config"
	"github.com/cloo-solutions/tutorai/internal/database"
	"github.com/cloo-solutions/tutorai/internal/server"
	"github.com/cloo-solutions/tutorai/internal/testutil"
	"go.uber.org/zap/zaptest"
)

const (
	apiToken      = "e2e-token"
	embeddingDims = 8
	articleTitle  = "Batalla de Boyacá"
	tutorReply    = "La batalla de Boyacá se libró el 7 de agosto de 1819 y aseguró la independencia de la Nueva Granada."
)

const articleExtract = "La batalla de Boyacá fue el enfrentamiento decisivo de la campaña libertadora de 1819. " +
	"Las tropas patriotas dirigidas por Simón Bolívar derrotaron al ejército realista. " +
	"El combate tuvo lugar cerca del puente de Boyacá.\n" +
	"== Desarrollo ==\n" +
	"Francisco de Paula Santander comandó la vanguardia patriota. " +
	"José María Barreiro dirigía las fuerzas realistas y fue capturado al final de la jornada. " +
	"La victoria abrió el camino hacia Santafé de Bogotá.\n" +
	"== Referencias ==\n" +
	"Archivo General de la Nación."

// E2ETestEnv holds the containers, the fake upstream services and a running
// API server wired exactly like tutord serve.
type E2ETestEnv struct {
	T   *testing.T
	Ctx context.Context

	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	Config    *config.Config
	Deps      *app.Dependencies

	OpenAI *httptest.Server
	Wiki   *httptest.Server
	Server *httptest.Server

	WikiSearches atomic.Int32
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, migrates, and boots the API.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()
	e := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	e.PostgresC = testutil.NewPostgresContainer(ctx, t)
	e.RustFSC = testutil.NewRustFSContainer(ctx, t)
	e.OpenAI = httptest.NewServer(http.HandlerFunc(fakeOpenAI))
	e.Wiki = httptest.NewServer(http.HandlerFunc(e.fakeWiki))

	e.Config = e.newConfig(e.PostgresC.ConnectionString())
	if err := database.Migrate(e.Config.DatabaseURL, "../../migrations", zaptest.NewLogger(t)); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	e.Deps = e.openDeps(e.Config)
	e.Deps.StartWorker(ctx)

	// A nil *EnrichmentJobRepository must reach the handler as a nil interface.
	var jobStore handlers.EnrichmentJobStore
	if e.Deps.Jobs != nil {
		jobStore = e.Deps.Jobs
	}
	e.Server = httptest.NewServer(server.NewRouter(server.RouterConfig{
		Logger:        zaptest.NewLogger(t).Named("http"),
		APIToken:      apiToken,
		AskHandler:    handlers.NewAskHandler(e.Deps.Controller),
		EnrichHandler: handlers.NewEnrichHandler(e.Deps.Enricher, jobStore),
		IndexHandler:  handlers.NewIndexHandler(e.Deps.Index),
	}))

	return e
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Deps != nil {
		e.Deps.Close()
	}
	if e.OpenAI != nil {
		e.OpenAI.Close()
	}
	if e.Wiki != nil {
		e.Wiki.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
}

func (e *E2ETestEnv) newConfig(databaseURL string) *config.Config {
	cfg := &config.Config{
		Environment: "test",
		DatabaseURL: databaseURL,
		DBMaxConns:  5,

		S3Endpoint:       e.RustFSC.Endpoint(),
		S3AccessKey:      testutil.RustFSCredential,
		S3SecretKey:      testutil.RustFSCredential,
		S3Bucket:         "tutorai-e2e",
		S3Region:         "us-east-1",
		S3SnapshotPrefix: "snapshots",

		OpenAIAPIKey:        "test-key",
		OpenAIBaseURL:       e.OpenAI.URL,
		ChatModel:           "gpt-test",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: embeddingDims,

		WikiAPIURL:            e.Wiki.URL,
		WikiRequestsPerSecond: 100,

		MaxChunkTokens:   120,
		MinChunkTokens:   0,
		AnnealIterations: 200,
		CoolingRate:      0.01,
		ExcludedSections: []string{"Referencias"},

		TopK:               3,
		CategoryWeight:     0.3,
		MaxEnrichments:     1,
		APIToken:           apiToken,
		WorkerPollInterval: 200 * time.Millisecond,
	}
	if err := cfg.Validate(); err != nil {
		e.T.Fatalf("invalid e2e config: %v", err)
	}
	return cfg
}

func (e *E2ETestEnv) openDeps(cfg *config.Config) *app.Dependencies {
	deps, err := app.Open(e.Ctx, cfg, zaptest.NewLogger(e.T))
	if err != nil {
		e.T.Fatalf("failed to open dependencies: %v", err)
	}
	if err := deps.BuildServices(); err != nil {
		deps.Close()
		e.T.Fatalf("failed to build services: %v", err)
	}
	return deps
}

// fakeWiki serves the MediaWiki search and extracts endpoints for one article.
func (e *E2ETestEnv) fakeWiki(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case q.Get("list") == "search":
		e.WikiSearches.Add(1)
		writeJSON(w, map[string]any{
			"query": map[string]any{
				"search": []map[string]string{{"title": articleTitle}},
			},
		})
	case q.Get("prop") == "extracts":
		writeJSON(w, map[string]any{
			"query": map[string]any{
				"pages": map[string]any{
					"1819": map[string]string{"title": q.Get("titles"), "extract": articleExtract},
				},
			},
		})
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

// fakeOpenAI answers embeddings with deterministic vectors and chat
// completions by looking at which prompt was sent.
func fakeOpenAI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/embeddings":
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": fakeVector(text)}
		}
		writeJSON(w, map[string]any{"object": "list", "model": "text-embedding-3-small", "data": data})

	case "/chat/completions":
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			http.Error(w, "bad chat request", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"id":     "chatcmpl-e2e",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": chatReply(req.Messages[0].Content, req.Messages[1].Content)},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 40, "completion_tokens": 10, "total_tokens": 50},
		})

	default:
		http.NotFound(w, r)
	}
}

func chatReply(system, user string) string {
	switch {
	case strings.Contains(system, "YES or NO"):
		// Sufficient as soon as anything was retrieved.
		if strings.Contains(user, "[1]") {
			return "YES"
		}
		return "NO"
	case strings.Contains(user, "Rewrite the following question"):
		return "Batalla de Boyacá 1819 Simón Bolívar"
	case strings.Contains(system, "encyclopedia"):
		return articleTitle
	default:
		return tutorReply
	}
}

func fakeVector(text string) []float32 {
	v := make([]float32, embeddingDims)
	for i := range v {
		h := fnv.New32a()
		_, _ = fmt.Fprintf(h, "%d:%s", i, text)
		v[i] = 0.1 + float32(h.Sum32()%1000)/1000
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int             `json:"-"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) *APIResponse {
	return e.doRequest(http.MethodGet, path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any, authToken string) *APIResponse {
	return e.doRequest(http.MethodPost, path, body, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body any, authToken string) *APIResponse {
	e.T.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reqBody)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		e.T.Fatalf("HTTP %d: undecodable body %q", resp.StatusCode, respBody)
	}
	return apiResp
}

// Decode unmarshals the data envelope into v.
func (r *APIResponse) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Data, v); err != nil {
		t.Fatalf("failed to decode data %s: %v", r.Data, err)
	}
}

// WaitForJob polls GET /enrich/{id} until the job leaves the queue.
func (e *E2ETestEnv) WaitForJob(id string, timeout time.Duration) handlers.EnrichmentJobResponse {
	e.T.Helper()

	deadline := time.Now().Add(timeout)
	for {
		var job handlers.EnrichmentJobResponse
		e.Get("/enrich/"+id, apiToken).Decode(e.T, &job)
		if job.Status == "completed" || job.Status == "failed" {
			return job
		}
		if time.Now().After(deadline) {
			e.T.Fatalf("job %s still %s after %s", id, job.Status, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
