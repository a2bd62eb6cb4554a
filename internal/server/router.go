package server

import (
	"net/http"
	"time"

	"github.com/cloo-solutions/tutorai/internal/api"
	"github.com/cloo-solutions/tutorai/internal/api/handlers"
	"github.com/cloo-solutions/tutorai/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	maxBodyBytes int64 = 5 * 1024 * 1024
	// A session may run every rung plus one enrichment against remote models.
	requestTimeout = 3 * time.Minute
)

type RouterConfig struct {
	Logger         *zap.Logger
	APIToken       string
	AllowedOrigins []string
	AskHandler     *handlers.AskHandler
	EnrichHandler  *handlers.EnrichHandler
	IndexHandler   *handlers.IndexHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*"}
	}

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.LimitBody(maxBodyBytes))
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(cfg.APIToken))

		r.Post("/ask", cfg.AskHandler.Ask)

		r.Route("/enrich", func(r chi.Router) {
			r.Post("/", cfg.EnrichHandler.Enrich)
			r.Get("/", cfg.EnrichHandler.ListJobs)
			r.Get("/{id}", cfg.EnrichHandler.GetJob)
		})

		r.Get("/index/stats", cfg.IndexHandler.Stats)
	})

	return r
}
