package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/tutorai/internal/api"
	"github.com/cloo-solutions/tutorai/internal/domain"
)

type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, question string) (*domain.Answer, error)
}

type AskHandler struct {
	answerer QuestionAnswerer
}

func NewAskHandler(answerer QuestionAnswerer) *AskHandler {
	return &AskHandler{answerer: answerer}
}

type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type AskResponse struct {
	SessionID   string `json:"session_id"`
	Answer      string `json:"answer"`
	Strategy    string `json:"strategy"`
	TokensUsed  int    `json:"tokens_used"`
	Attempts    int    `json:"attempts"`
	Enrichments int    `json:"enrichments"`
}

func answerToResponse(a *domain.Answer) *AskResponse {
	return &AskResponse{
		SessionID:   a.SessionID,
		Answer:      a.Text,
		Strategy:    a.Strategy,
		TokensUsed:  a.TokensUsed,
		Attempts:    a.Attempts,
		Enrichments: a.Enrichments,
	}
}

// Ask runs one question-answering session. A session that cannot answer
// still responds 200 with the failed strategy.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	answer, err := h.answerer.AnswerQuestion(r.Context(), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(answer))
}
