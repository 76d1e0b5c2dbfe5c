package generator

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client      chatCompleter
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAI returns an OpenAI backend. An empty model uses gpt-4o-mini.
func NewOpenAI(apiKey, model string, maxTokens int, temperature float64) *OpenAI {
	return newOpenAI(openai.NewClient(apiKey), model, maxTokens, temperature)
}

func newOpenAI(c chatCompleter, model string, maxTokens int, temperature float64) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: c, model: model, maxTokens: maxTokens, temperature: float32(temperature)}
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
