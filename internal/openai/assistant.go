package openai

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/cloo-solutions/tutorai/internal/domain"
)

//go:embed prompts/*.tmpl
var promptsFS embed.FS

var prompts = template.Must(template.New("prompts").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	ParseFS(promptsFS, "prompts/*.tmpl"))

// ErrUnparsableVerdict is returned when the oracle reply is neither yes nor no
var ErrUnparsableVerdict = errors.New("sufficiency verdict is neither YES nor NO")

type promptData struct {
	Question string
	Chunks   []string
}

// Assistant implements the chat-backed collaborators of a question session:
// the sufficiency oracle, the query refiner, the search query deriver and the
// answer generator.
type Assistant struct {
	chat ChatAPI
}

func NewAssistant(chat ChatAPI) *Assistant {
	return &Assistant{chat: chat}
}

// IsSufficient asks whether chunks are enough to answer question.
func (a *Assistant) IsSufficient(ctx context.Context, question string, chunks []string) (bool, error) {
	reply, err := a.ask(ctx, "oracle", "sufficiency.tmpl", promptData{Question: question, Chunks: chunks})
	if err != nil {
		return false, domain.Wrap(domain.ErrOracleUnavailable, err)
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		return false, domain.Wrap(domain.ErrOracleUnavailable, err)
	}
	return verdict, nil
}

// Refine rewrites question for retrieval.
func (a *Assistant) Refine(ctx context.Context, question string) (string, error) {
	reply, err := a.ask(ctx, "search", "refine.tmpl", promptData{Question: question})
	if err != nil {
		return "", fmt.Errorf("failed to refine question: %w", err)
	}
	return singleLine(reply)
}

// DeriveSearchQuery turns question into an encyclopedia search query.
func (a *Assistant) DeriveSearchQuery(ctx context.Context, question string) (string, error) {
	reply, err := a.ask(ctx, "search", "derive.tmpl", promptData{Question: question})
	if err != nil {
		return "", fmt.Errorf("failed to derive search query: %w", err)
	}
	return singleLine(reply)
}

// Answer writes the tutor's answer to question from chunks.
func (a *Assistant) Answer(ctx context.Context, question string, chunks []string) (string, error) {
	reply, err := a.ask(ctx, "tutor", "answer.tmpl", promptData{Question: question, Chunks: chunks})
	if err != nil {
		return "", domain.Wrap(domain.ErrGeneratorUnavailable, err)
	}
	if reply == "" {
		return "", domain.Wrap(domain.ErrGeneratorUnavailable, errors.New("empty answer"))
	}
	return reply, nil
}

func (a *Assistant) ask(ctx context.Context, system, user string, data promptData) (string, error) {
	systemPrompt, err := render(system, data)
	if err != nil {
		return "", err
	}
	userPrompt, err := render(user, data)
	if err != nil {
		return "", err
	}
	return a.chat.Complete(ctx, systemPrompt, userPrompt)
}

func render(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func parseVerdict(reply string) (bool, error) {
	word := strings.ToUpper(strings.Trim(strings.TrimSpace(reply), ".!\"'"))
	switch {
	case strings.HasPrefix(word, "YES"), strings.HasPrefix(word, "SÍ"), strings.HasPrefix(word, "SI"):
		return true, nil
	case strings.HasPrefix(word, "NO"):
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnparsableVerdict, reply)
}

func singleLine(reply string) (string, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(reply), "\n")
	line = strings.Trim(strings.TrimSpace(line), "\"'")
	if line == "" {
		return "", errors.New("empty reply")
	}
	return line, nil
}
