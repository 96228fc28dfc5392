package context

import (
	"errors"
	"fmt"
)

// ErrContextOverflow is matched by every *OverflowError.
var ErrContextOverflow = errors.New("context overflow")

// Default budget values for a 128k-context chat model.
const (
	DefaultContextLimitTokens = 128_000
	DefaultMaxOutputTokens    = 512
)

// Budget describes how much of the model's context window a turn may use.
type Budget struct {
	// ContextLimitTokens is the model's context window. Zero or less
	// disables the overflow guard.
	ContextLimitTokens int `yaml:"context_limit_tokens"`
	// MaxOutputTokens is reserved for the completion and sent as max_tokens.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// DefaultBudget returns the default budget.
func DefaultBudget() Budget {
	return Budget{
		ContextLimitTokens: DefaultContextLimitTokens,
		MaxOutputTokens:    DefaultMaxOutputTokens,
	}
}

// OverflowError reports a prompt that would not fit the context window.
type OverflowError struct {
	PromptTokens       int
	MaxOutputTokens    int
	ContextLimitTokens int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("context overflow: estimated prompt %d + max output %d tokens exceeds limit %d; reset the chat or switch strategy",
		e.PromptTokens, e.MaxOutputTokens, e.ContextLimitTokens)
}

// Unwrap lets errors.Is match ErrContextOverflow.
func (e *OverflowError) Unwrap() error {
	return ErrContextOverflow
}

// Check returns an *OverflowError when promptTokens plus the output
// reservation exceeds the context limit.
func (b Budget) Check(promptTokens int) error {
	if b.ContextLimitTokens <= 0 {
		return nil
	}
	if promptTokens+b.MaxOutputTokens > b.ContextLimitTokens {
		return &OverflowError{
			PromptTokens:       promptTokens,
			MaxOutputTokens:    b.MaxOutputTokens,
			ContextLimitTokens: b.ContextLimitTokens,
		}
	}
	return nil
}

// Remaining returns how many prompt tokens are still available, never negative.
func (b Budget) Remaining(promptTokens int) int {
	if b.ContextLimitTokens <= 0 {
		return 0
	}
	left := b.ContextLimitTokens - b.MaxOutputTokens - promptTokens
	if left < 0 {
		return 0
	}
	return left
}
