package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"github.com/cloo-solutions/tutorai/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SufficiencyOracle judges whether retrieved chunks can answer a question.
type SufficiencyOracle interface {
	IsSufficient(ctx context.Context, question string, chunks []string) (bool, error)
}

// QueryRefiner rewrites a question for better retrieval.
type QueryRefiner interface {
	Refine(ctx context.Context, question string) (string, error)
}

// AnswerGenerator writes the final answer from retrieved chunks.
type AnswerGenerator interface {
	Answer(ctx context.Context, question string, chunks []string) (string, error)
}

// Assistant bundles the chat-backed collaborators of a session.
type Assistant interface {
	SufficiencyOracle
	QueryRefiner
	AnswerGenerator
}

// QuestionEnricher grows the corpus for a question.
type QuestionEnricher interface {
	EnrichForQuestion(ctx context.Context, question string) (int, error)
}

// ControllerConfig tunes the escalation ladder.
type ControllerConfig struct {
	Ladder         domain.Ladder
	CategoryWeight float64
	// MaxEnrichments caps enrichment restarts per session. Defaults to 1.
	MaxEnrichments int
	// MaxRetrievalAttempts caps index searches per session. Defaults to the
	// ladder length plus one, so the pass after an enrichment restart is cut
	// short once the budget is spent. Twice RetrievalSteps lets it replay the
	// whole ladder.
	MaxRetrievalAttempts int
}

// Controller answers questions by walking the strategy ladder until the
// oracle accepts the retrieved context or the ladder is exhausted.
type Controller struct {
	index     VectorIndex
	embedder  Embedder
	assistant Assistant
	enricher  QuestionEnricher
	cfg       ControllerConfig
	logger    *zap.Logger
}

func NewController(index VectorIndex, embedder Embedder, assistant Assistant, enricher QuestionEnricher, cfg ControllerConfig, logger *zap.Logger) *Controller {
	if cfg.Ladder.Len() == 0 {
		cfg.Ladder = domain.DefaultLadder()
	}
	if cfg.MaxEnrichments <= 0 {
		cfg.MaxEnrichments = 1
	}
	if cfg.MaxRetrievalAttempts <= 0 {
		cfg.MaxRetrievalAttempts = cfg.Ladder.Len() + 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		index:     index,
		embedder:  embedder,
		assistant: assistant,
		enricher:  enricher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Config returns the effective configuration.
func (c *Controller) Config() ControllerConfig {
	return c.cfg
}

// session is the per-question state. It never outlives AnswerQuestion.
type session struct {
	id          string
	original    string
	current     string
	vector      []float32
	tokens      int
	attempts    int
	enrichments int
}

// AnswerQuestion runs one session. The only error is a validation error for
// an empty question; every other outcome is an Answer, possibly Failed.
func (c *Controller) AnswerQuestion(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	s := &session{id: uuid.NewString(), original: question, current: question}
	logger := c.logger.With(zap.String("session_id", s.id))

	ctx, span := telemetry.StartSpan(ctx, "controller.answer", telemetry.SpanAttributes{SessionID: s.id, Operation: "answer"})
	defer span.End()

	steps := c.cfg.Ladder.Steps()
	enrichAt := c.cfg.Ladder.EnrichmentIndex()

	i := 0
	if c.index.Count() == 0 && enrichAt >= 0 {
		logger.Info("index is empty, enriching first")
		i = enrichAt
	}

	for i < len(steps) {
		step := steps[i]

		if step.IsEnrichment {
			if !c.enrich(ctx, s, logger) {
				return c.fail(s, logger, "enrichment added nothing"), nil
			}
			i = 0
			continue
		}

		if s.attempts >= c.cfg.MaxRetrievalAttempts {
			return c.fail(s, logger, "retrieval attempts exhausted"), nil
		}

		answer, done := c.runStep(ctx, s, step, logger)
		if done {
			return answer, nil
		}
		i++
	}

	return c.fail(s, logger, "ladder exhausted"), nil
}

// runStep performs one retrieval rung. It reports done when the session
// reached a terminal state.
func (c *Controller) runStep(ctx context.Context, s *session, step domain.StrategyStep, logger *zap.Logger) (*domain.Answer, bool) {
	ctx, span := telemetry.StartSpan(ctx, "controller.step", telemetry.SpanAttributes{SessionID: s.id, Strategy: step.Name, Operation: "retrieve"})
	defer span.End()

	stepLogger := logger.With(zap.String("strategy", step.Name))

	if step.Refine {
		refined, err := c.assistant.Refine(ctx, s.current)
		switch {
		case err != nil:
			stepLogger.Warn("refine failed, keeping question", zap.Error(err))
		case refined != s.current:
			s.current = refined
			s.vector = nil
		}
	}

	s.attempts++
	results, err := c.retrieve(ctx, s, step)
	if err != nil {
		stepLogger.Warn("retrieval failed", zap.Error(err))
		return nil, false
	}
	if len(results) == 0 {
		stepLogger.Info("no chunks retrieved", zap.Int("tokens", s.tokens))
		return nil, false
	}

	texts := domain.Texts(results)
	s.tokens += countTokens(texts)
	span.SetData("chunks", len(texts))

	sufficient, err := c.assistant.IsSufficient(ctx, s.original, texts)
	if err != nil {
		stepLogger.Warn("oracle failed, treating context as insufficient", zap.Error(err))
		sufficient = false
	}
	stepLogger.Info("step evaluated",
		zap.Int("chunks", len(texts)),
		zap.Int("tokens", s.tokens),
		zap.Bool("sufficient", sufficient))
	if !sufficient {
		return nil, false
	}

	text, err := c.assistant.Answer(ctx, s.original, texts)
	if err != nil {
		span.SetError(err)
		stepLogger.Error("answer generation failed", zap.Error(err))
		return c.fail(s, logger, "answer generation failed"), true
	}

	stepLogger.Info("question answered", zap.Int("tokens", s.tokens), zap.Int("attempts", s.attempts))
	return &domain.Answer{
		SessionID:   s.id,
		Text:        text,
		Strategy:    step.Name,
		TokensUsed:  s.tokens,
		Attempts:    s.attempts,
		Enrichments: s.enrichments,
	}, true
}

func (c *Controller) retrieve(ctx context.Context, s *session, step domain.StrategyStep) ([]domain.RetrievalResult, error) {
	if s.vector == nil {
		vector, err := c.embedder.Embed(ctx, s.current)
		if err != nil {
			return nil, err
		}
		s.vector = vector
	}

	if step.Rerank {
		return c.index.SearchWithRerank(ctx, s.vector, step.TopK, c.cfg.CategoryWeight)
	}
	return c.index.SearchByVector(ctx, s.vector, step.TopK)
}

// enrich runs one enrichment restart and resets the session to the original
// question. It reports false when the cap is reached or nothing was added.
func (c *Controller) enrich(ctx context.Context, s *session, logger *zap.Logger) bool {
	if c.enricher == nil || s.enrichments >= c.cfg.MaxEnrichments {
		return false
	}
	s.enrichments++

	ctx, span := telemetry.StartSpan(ctx, "controller.enrich", telemetry.SpanAttributes{SessionID: s.id, Operation: "enrich"})
	defer span.End()

	added, err := c.enricher.EnrichForQuestion(ctx, s.original)
	if err != nil {
		span.SetError(err)
		logger.Warn("enrichment failed", zap.Error(err))
		return false
	}
	logger.Info("enrichment finished", zap.Int("chunks_added", added))
	if added == 0 {
		return false
	}

	s.current = s.original
	s.vector = nil
	return true
}

func (c *Controller) fail(s *session, logger *zap.Logger, reason string) *domain.Answer {
	logger.Info("session failed",
		zap.String("reason", reason),
		zap.String("strategy", domain.StrategyFailed),
		zap.Int("tokens", s.tokens),
		zap.Int("attempts", s.attempts),
		zap.Int("enrichments", s.enrichments))
	return &domain.Answer{
		SessionID:   s.id,
		Text:        domain.FailureAnswer,
		Strategy:    domain.StrategyFailed,
		TokensUsed:  s.tokens,
		Attempts:    s.attempts,
		Enrichments: s.enrichments,
	}
}

// countTokens counts whitespace-separated tokens across texts.
func countTokens(texts []string) int {
	n := 0
	for _, t := range texts {
		n += len(strings.Fields(t))
	}
	return n
}
