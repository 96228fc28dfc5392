package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aixgo-dev/chatcore/internal/llm/cost"
	"github.com/aixgo-dev/chatcore/pkg/memory"
)

const tracerName = "github.com/aixgo-dev/chatcore/pkg/llm"

// Instrumented wraps a Completer with a span per call carrying token usage
// and cost attributes.
type Instrumented struct {
	next       Completer
	model      string
	calculator *cost.Calculator
	tracer     trace.Tracer
}

// InstrumentedConfig contains configuration for Instrumented
type InstrumentedConfig struct {
	// Model is recorded on spans and used for cost lookup when the call
	// does not override it.
	Model string

	// Calculator for cost tracking (defaults to cost.DefaultCalculator)
	Calculator *cost.Calculator

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// NewInstrumented wraps next.
func NewInstrumented(next Completer, cfg InstrumentedConfig) *Instrumented {
	if cfg.Calculator == nil {
		cfg.Calculator = cost.DefaultCalculator
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Instrumented{
		next:       next,
		model:      cfg.Model,
		calculator: cfg.Calculator,
		tracer:     cfg.TracerProvider.Tracer(tracerName),
	}
}

// Ask forwards to the wrapped Completer inside an "llm.completion" span.
func (i *Instrumented) Ask(ctx context.Context, messages []memory.Message, opts ...Option) (*Result, error) {
	o := ApplyOptions(opts)
	model := i.model
	if o.Model != "" {
		model = o.Model
	}

	ctx, span := i.tracer.Start(ctx, "llm.completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Int("llm.max_tokens", o.MaxTokens),
			attribute.Int("llm.messages_count", len(messages)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := i.next.Ask(ctx, messages, opts...)

	span.SetAttributes(
		attribute.Int64("llm.duration_ms", time.Since(start).Milliseconds()),
		attribute.Bool("llm.success", err == nil),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if result != nil && result.Usage != nil {
		span.SetAttributes(
			attribute.Int("llm.usage.prompt_tokens", result.Usage.PromptTokens),
			attribute.Int("llm.usage.completion_tokens", result.Usage.CompletionTokens),
			attribute.Int("llm.usage.total_tokens", result.Usage.TotalTokens),
		)

		usage := &cost.Usage{
			Model:        model,
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		}
		if c, err := i.calculator.Calculate(usage); err == nil {
			span.SetAttributes(
				attribute.Float64("llm.cost.input_usd", c.InputCost),
				attribute.Float64("llm.cost.output_usd", c.OutputCost),
				attribute.Float64("llm.cost.total_usd", c.TotalCost),
			)
		}
	}

	return result, nil
}
