package agent

import (
	"log/slog"

	llmctx "github.com/aixgo-dev/chatcore/internal/llm/context"
	"github.com/aixgo-dev/chatcore/internal/llm/cost"
	"github.com/aixgo-dev/chatcore/pkg/observability"
)

// DefaultSystemPrompt is the preamble sent ahead of every prompt.
const DefaultSystemPrompt = "You are a helpful assistant."

type options struct {
	systemPrompt string
	budget       llmctx.Budget
	estimator    llmctx.TokenEstimator
	costs        *cost.Estimator
	recorder     observability.TurnRecorder
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		systemPrompt: DefaultSystemPrompt,
		budget:       llmctx.DefaultBudget(),
		estimator:    llmctx.DefaultEstimator,
		costs:        cost.ForModel(nil, cost.DefaultModel),
		recorder:     observability.NopRecorder{},
		logger:       slog.Default(),
	}
}

// Option configures an agent.
type Option func(*options)

// WithSystemPrompt replaces the system preamble.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) {
		o.systemPrompt = prompt
	}
}

// WithBudget sets the context limit and output reservation. A budget with a
// non-positive ContextLimitTokens disables the overflow guard.
func WithBudget(b llmctx.Budget) Option {
	return func(o *options) {
		o.budget = b
	}
}

// WithEstimator replaces the token estimator.
func WithEstimator(e llmctx.TokenEstimator) Option {
	return func(o *options) {
		if e != nil {
			o.estimator = e
		}
	}
}

// WithCostEstimator sets the rates used for the per-turn cost.
func WithCostEstimator(e *cost.Estimator) Option {
	return func(o *options) {
		if e != nil {
			o.costs = e
		}
	}
}

// WithMetrics sets the turn recorder.
func WithMetrics(r observability.TurnRecorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
