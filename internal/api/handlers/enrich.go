package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/tutorai/internal/api"
	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/pagination"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type DocumentEnricher interface {
	Enrich(ctx context.Context, doc *domain.Document) (int, error)
	EnrichQuery(ctx context.Context, query string) (int, error)
}

type EnrichmentJobStore interface {
	Create(ctx context.Context, job *domain.EnrichmentJob) error
	GetByID(ctx context.Context, id string) (*domain.EnrichmentJob, error)
	List(ctx context.Context, status domain.EnrichmentJobStatus, cursor *pagination.Cursor, limit int) (pagination.Page[*domain.EnrichmentJob], error)
}

type EnrichHandler struct {
	enricher DocumentEnricher
	jobs     EnrichmentJobStore
}

// NewEnrichHandler creates an EnrichHandler. With a nil job store, query
// enrichment runs synchronously within the request.
func NewEnrichHandler(enricher DocumentEnricher, jobs EnrichmentJobStore) *EnrichHandler {
	return &EnrichHandler{enricher: enricher, jobs: jobs}
}

type SectionRequest struct {
	Name string `json:"name"`
	Text string `json:"text" validate:"required"`
}

type DocumentRequest struct {
	Title    string           `json:"title" validate:"required"`
	Sections []SectionRequest `json:"sections" validate:"required,min=1,dive"`
}

type EnrichRequest struct {
	Query    string           `json:"query" validate:"required_without=Document,excluded_with=Document"`
	Document *DocumentRequest `json:"document,omitempty"`
}

type EnrichResponse struct {
	JobID       string `json:"job_id,omitempty"`
	ChunksAdded int    `json:"chunks_added"`
}

type EnrichmentJobResponse struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	ChunksAdded int    `json:"chunks_added"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

type JobListResponse struct {
	Jobs       []*EnrichmentJobResponse `json:"jobs"`
	NextCursor string                   `json:"next_cursor,omitempty"`
	HasMore    bool                     `json:"has_more"`
}

func jobToResponse(j *domain.EnrichmentJob) *EnrichmentJobResponse {
	resp := &EnrichmentJobResponse{
		ID:          j.ID,
		Query:       j.Query,
		Status:      string(j.Status),
		Retries:     j.Retries,
		Error:       j.Error,
		ChunksAdded: j.ChunksAdded,
		CreatedAt:   j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *EnrichHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if req.Document != nil {
		doc := &domain.Document{Title: req.Document.Title}
		for _, s := range req.Document.Sections {
			doc.Sections = append(doc.Sections, domain.Section{Name: s.Name, Text: s.Text})
		}
		added, err := h.enricher.Enrich(r.Context(), doc)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusOK, EnrichResponse{ChunksAdded: added})
		return
	}

	if h.jobs == nil {
		added, err := h.enricher.EnrichQuery(r.Context(), req.Query)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusOK, EnrichResponse{ChunksAdded: added})
		return
	}

	job := domain.NewEnrichmentJob(uuid.NewString(), req.Query, time.Now().UTC())
	if err := h.jobs.Create(r.Context(), job); err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusAccepted, EnrichResponse{JobID: job.ID})
}

func (h *EnrichHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		api.HandleError(w, domain.ErrEnrichmentJobNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		api.HandleError(w, domain.ErrEnrichmentJobNotFound)
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, jobToResponse(job))
}

// ListJobs pages through queued jobs, newest first. Query parameters: status,
// cursor and limit.
func (h *EnrichHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		api.Success(w, http.StatusOK, JobListResponse{Jobs: []*EnrichmentJobResponse{}})
		return
	}

	q := r.URL.Query()
	status, err := domain.ParseEnrichmentJobStatus(q.Get("status"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	cursor, err := pagination.Decode(q.Get("cursor"))
	if err != nil {
		api.HandleError(w, domain.ErrInvalidCursor)
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	page, err := h.jobs.List(r.Context(), status, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := JobListResponse{
		Jobs:       make([]*EnrichmentJobResponse, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i, j := range page.Items {
		resp.Jobs[i] = jobToResponse(j)
	}
	api.Success(w, http.StatusOK, resp)
}
