package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestInstrumented_RecordsUsageAndCost(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	mock := NewMockCompleter().AddResponse("ok", &Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000, TotalTokens: 2_000_000})
	c := NewInstrumented(mock, InstrumentedConfig{TracerProvider: tp})

	res, err := c.Ask(context.Background(), []memory.Message{memory.NewMessage(memory.RoleUser, "hi")}, WithMaxTokens(512))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.completion", spans[0].Name())

	attrs := spanAttrs(spans[0])
	assert.Equal(t, DefaultModel, attrs["llm.model"].AsString())
	assert.Equal(t, int64(512), attrs["llm.max_tokens"].AsInt64())
	assert.Equal(t, int64(1_000_000), attrs["llm.usage.prompt_tokens"].AsInt64())
	assert.True(t, attrs["llm.success"].AsBool())
	assert.InDelta(t, 0.70, attrs["llm.cost.total_usd"].AsFloat64(), 1e-9)
}

func TestInstrumented_RecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	boom := errors.New("upstream down")
	c := NewInstrumented(NewMockCompleter().AddError(boom), InstrumentedConfig{TracerProvider: tp})

	_, err := c.Ask(context.Background(), nil)
	assert.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.False(t, spanAttrs(spans[0])["llm.success"].AsBool())
}

func TestMockCompleter_Default(t *testing.T) {
	m := NewMockCompleter()
	res, err := m.Ask(context.Background(), nil, WithMaxTokens(3))
	require.NoError(t, err)
	assert.Equal(t, "Mock response", res.Text)
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, 3, m.Calls()[0].Options.MaxTokens)
}
