package generator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-compare-backend/internal/observability"
)

var tracer = otel.Tracer("github.com/tbourn/go-compare-backend/internal/generator")

// Instrumented wraps a Generator with a span and provider metrics.
type Instrumented struct {
	next     Generator
	provider string
}

// Instrument returns g wrapped with tracing and metrics.
func Instrument(g Generator, provider string) *Instrumented {
	return &Instrumented{next: g, provider: provider}
}

// Generate implements Generator.
func (i *Instrumented) Generate(ctx context.Context, p Prompt) (string, error) {
	ctx, span := tracer.Start(ctx, "Generator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generator.provider", i.provider),
		attribute.Int("prompt.chars", len(p.System)+len(p.User)),
	)

	start := time.Now()
	out, err := i.next.Generate(ctx, p)
	observability.ObserveProviderCall(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("response.chars", len(out)))
	return out, nil
}
