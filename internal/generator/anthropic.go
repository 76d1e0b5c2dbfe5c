package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Anthropic generates text with the Messages API.
type Anthropic struct {
	messages    messageCreator
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropic returns an Anthropic backend.
func NewAnthropic(apiKey, model string, maxTokens int, temperature float64) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropic(&client.Messages, model, maxTokens, temperature)
}

func newAnthropic(m messageCreator, model string, maxTokens int, temperature float64) *Anthropic {
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Anthropic{messages: m, model: model, maxTokens: int64(maxTokens), temperature: temperature}
}

// Generate implements Generator.
func (a *Anthropic) Generate(ctx context.Context, p Prompt) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	resp, err := a.messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
