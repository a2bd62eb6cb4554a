package handlers

import (
	"net/http"

	"github.com/cloo-solutions/tutorai/internal/api"
)

type IndexInspector interface {
	Count() int
	Dimension() int
	Corrupt() bool
}

type IndexHandler struct {
	index IndexInspector
}

func NewIndexHandler(index IndexInspector) *IndexHandler {
	return &IndexHandler{index: index}
}

type IndexStatsResponse struct {
	Count     int  `json:"count"`
	Dimension int  `json:"dimension"`
	Corrupt   bool `json:"corrupt"`
}

func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, IndexStatsResponse{
		Count:     h.index.Count(),
		Dimension: h.index.Dimension(),
		Corrupt:   h.index.Corrupt(),
	})
}
