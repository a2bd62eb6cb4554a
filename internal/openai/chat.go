package openai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is used by the assistant when no model is configured
const DefaultChatModel = openai.GPT4oMini

// ChatAPI sends one system+user exchange and returns the reply text.
type ChatAPI interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type ChatAdapter struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewChatAdapter(apiKey, baseURL, model string) *ChatAdapter {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatAdapter{
		client: openai.NewClientWithConfig(clientConfig(apiKey, baseURL)),
		model:  model,
	}
}

// Complete calls the chat completions endpoint
func (a *ChatAdapter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
