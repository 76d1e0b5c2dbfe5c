// Package generator abstracts the generative text provider that writes
// comparisons and chat replies. Backends: OpenAI chat completions, the
// Anthropic Messages API, and a static backend for demos and tests.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-compare-backend/internal/config"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("generator returned empty response")

// Prompt is one generation request.
type Prompt struct {
	System string
	User   string
	// Subjects are the product names being compared, if any. Only the static
	// backend reads them.
	Subjects []string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, p Prompt) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

// New builds the backend selected by cfg and wraps it with Instrumented and
// a per-call timeout.
func New(cfg config.GeneratorConfig) (Generator, error) {
	var g Generator
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		g = NewOpenAI(cfg.OpenAIAPIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case "anthropic":
		g = NewAnthropic(cfg.AnthropicAPIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case "static", "":
		g = NewStatic(cfg.StaticResponse)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
	return Instrument(WithTimeout(g, cfg.Timeout), cfg.Provider), nil
}

// WithTimeout bounds every call to g by d. A non-positive d returns g.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return Func(func(ctx context.Context, p Prompt) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return g.Generate(ctx, p)
	})
}
