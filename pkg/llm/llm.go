// Package llm defines the completion service used by the agents and its
// OpenAI-compatible implementation.
package llm

import (
	"context"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Completer sends an ordered message list to a chat-completion endpoint.
// Failures are returned as-is; implementations do not retry.
type Completer interface {
	Ask(ctx context.Context, messages []memory.Message, opts ...Option) (*Result, error)
}

// Result is a completion reply.
type Result struct {
	Text string
	// Usage is nil when the endpoint did not report token usage.
	Usage *Usage
}

// Usage tracks token usage reported by the endpoint.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Options holds generation options
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Option is a functional option for completion requests
type Option func(*Options)

// WithModel sets the model to use
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithMaxTokens sets the maximum tokens to generate
func WithMaxTokens(tokens int) Option {
	return func(o *Options) {
		o.MaxTokens = tokens
	}
}

// WithTemperature sets the temperature
func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = &temp
	}
}

// ApplyOptions folds opts into an Options value.
func ApplyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []memory.Message, opts ...Option) (*Result, error)

// Ask calls f.
func (f CompleterFunc) Ask(ctx context.Context, messages []memory.Message, opts ...Option) (*Result, error) {
	return f(ctx, messages, opts...)
}
