package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	llmctx "github.com/aixgo-dev/chatcore/internal/llm/context"
	"github.com/aixgo-dev/chatcore/internal/summary"
	"github.com/aixgo-dev/chatcore/pkg/llm"
	"github.com/aixgo-dev/chatcore/pkg/memory"
	"github.com/aixgo-dev/chatcore/pkg/observability"
	"github.com/aixgo-dev/chatcore/pkg/session"
)

// SummaryMode is the metrics label for SummaryAgent turns.
const SummaryMode = "summary"

// SummaryPrefix introduces the running summary in the prompt.
const SummaryPrefix = "Conversation summary so far:\n"

// SummaryAgent runs turns over a memory.Snapshot, folding older messages
// into a running summary.
type SummaryAgent struct {
	mu          sync.Mutex
	initialized bool
	snap        memory.Snapshot

	completer llm.Completer
	store     session.Port[memory.Snapshot]
	manager   *summary.Manager
	opts      options
}

// NewSummaryAgent creates a SummaryAgent. A nil manager uses an
// LLMSummarizer over completer with default batch and tail sizes.
func NewSummaryAgent(completer llm.Completer, store session.Port[memory.Snapshot], manager *summary.Manager, opts ...Option) *SummaryAgent {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if manager == nil {
		manager = summary.NewManager(summary.NewLLMSummarizer(completer), summary.WithLogger(o.logger))
	}
	return &SummaryAgent{
		completer: completer,
		store:     store,
		manager:   manager,
		opts:      o,
	}
}

// Init loads the persisted snapshot once.
func (a *SummaryAgent) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initLocked(ctx)
}

func (a *SummaryAgent) initLocked(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	snap, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	a.snap = snap
	a.initialized = true
	return nil
}

// Messages returns a copy of the full transcript.
func (a *SummaryAgent) Messages(ctx context.Context) ([]memory.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]memory.Message, len(a.snap.Messages))
	copy(out, a.snap.Messages)
	return out, nil
}

// Summary returns the running summary and how many messages it covers.
func (a *SummaryAgent) Summary(ctx context.Context) (string, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return "", 0, err
	}
	return a.snap.Summary, a.snap.SummarizedCount, nil
}

// Reset forgets the conversation in memory and in the store.
func (a *SummaryAgent) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap = memory.Snapshot{}
	a.initialized = true
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// HandleUserMessage runs one turn. A compression triggered by the turn is
// saved together with it; on failure neither is kept.
func (a *SummaryAgent) HandleUserMessage(ctx context.Context, text string) (*Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		a.opts.recorder.RecordTurn(observability.Turn{Mode: SummaryMode, Status: observability.StatusEmpty})
		return &Reply{}, nil
	}

	reply, err := a.turn(ctx, trimmed)

	rec := observability.Turn{Mode: SummaryMode, Status: observability.StatusOK, Duration: time.Since(start)}
	switch {
	case errors.Is(err, llmctx.ErrContextOverflow):
		rec.Status = observability.StatusOverflow
	case err != nil:
		rec.Status = observability.StatusError
	default:
		rec.PromptTokens = reply.Metrics.EstimatedPromptTokens
		rec.CostUSD = costOf(reply.Metrics)
	}
	a.opts.recorder.RecordTurn(rec)

	return reply, err
}

func (a *SummaryAgent) turn(ctx context.Context, text string) (*Reply, error) {
	work := a.snap.Clone()
	work.Messages = append(work.Messages, memory.NewMessage(memory.RoleUser, text))

	plan, err := a.manager.Prepare(ctx, work)
	if err != nil {
		return nil, err
	}
	if plan.Updated != nil {
		work.Summary = plan.Updated.Summary
		work.SummarizedCount = plan.Updated.SummarizedCount
		a.opts.recorder.RecordCompression()
	}

	prompt := make([]memory.Message, 0, len(plan.Tail)+2)
	prompt = append(prompt, memory.NewMessage(memory.RoleSystem, a.opts.systemPrompt))
	if strings.TrimSpace(plan.Summary) != "" {
		prompt = append(prompt, memory.NewMessage(memory.RoleSystem, SummaryPrefix+plan.Summary))
	}
	prompt = append(prompt, plan.Tail...)

	label := fmt.Sprintf("Summary(summarized=%d, tail=%d, keepLast=%d)",
		work.SummarizedCount, len(plan.Tail), a.manager.KeepLast())

	metrics := TurnMetrics{
		TurnID:                uuid.NewString(),
		EstimatedPromptTokens: a.opts.estimator.EstimateMessages(prompt),
		EstimatedUserTokens:   a.opts.estimator.EstimateTokens(text),
	}
	metrics.EstimatedHistoryTokens = max(0, metrics.EstimatedPromptTokens-metrics.EstimatedUserTokens)

	if err := a.opts.budget.Check(metrics.EstimatedPromptTokens); err != nil {
		a.opts.logger.Warn("context overflow, turn rejected",
			"strategy", label,
			"prompt_tokens", metrics.EstimatedPromptTokens,
			"limit", a.opts.budget.ContextLimitTokens)
		return nil, err
	}

	res, err := a.completer.Ask(ctx, prompt, llm.WithMaxTokens(a.opts.budget.MaxOutputTokens))
	if err != nil {
		return nil, fmt.Errorf("ask completion: %w", err)
	}

	answer := strings.TrimSpace(res.Text)
	work.Messages = append(work.Messages, memory.NewMessage(memory.RoleAssistant, answer))

	if err := a.store.Save(ctx, work); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	a.snap = work

	metrics.setUsage(res.Usage, a.opts.costs)
	return &Reply{Text: answer, Metrics: metrics, DebugLabel: label}, nil
}
