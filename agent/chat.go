package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aixgo-dev/chatcore/internal/facts"
	llmctx "github.com/aixgo-dev/chatcore/internal/llm/context"
	"github.com/aixgo-dev/chatcore/internal/strategy"
	"github.com/aixgo-dev/chatcore/pkg/llm"
	"github.com/aixgo-dev/chatcore/pkg/memory"
	"github.com/aixgo-dev/chatcore/pkg/observability"
	"github.com/aixgo-dev/chatcore/pkg/session"
)

// DefaultBranchID is the branch activated by SetCheckpointAtCurrent when
// no branch is active yet.
const DefaultBranchID = "A"

// ChatAgent runs turns over a memory.State using a context strategy.
type ChatAgent struct {
	mu          sync.Mutex
	initialized bool
	state       memory.State

	completer llm.Completer
	store     session.Port[memory.State]
	selector  *strategy.Selector
	facts     facts.Updater
	opts      options
}

// NewChatAgent creates an agent that asks completer and persists to store.
func NewChatAgent(completer llm.Completer, store session.Port[memory.State], opts ...Option) *ChatAgent {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ChatAgent{
		completer: completer,
		store:     store,
		selector:  strategy.NewSelector(),
		facts:     facts.NewLLMUpdater(completer, o.logger),
		opts:      o,
	}
}

// SetFactsUpdater replaces the updater used under the sticky-facts strategy.
func (a *ChatAgent) SetFactsUpdater(u facts.Updater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.facts = u
}

// Init loads the persisted state once. Later calls are no-ops.
func (a *ChatAgent) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initLocked(ctx)
}

func (a *ChatAgent) initLocked(ctx context.Context) error {
	if a.initialized {
		return nil
	}

	state, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	if state.Repair() {
		a.opts.logger.Debug("inserted missing active branch", "branch", state.ActiveBranch())
		if err := a.store.Save(ctx, state); err != nil {
			return fmt.Errorf("save repaired memory: %w", err)
		}
	}

	a.state = state
	a.initialized = true
	a.opts.logger.Debug("memory loaded",
		"history", len(a.state.History),
		"branches", len(a.state.Branching.Branches),
		"checkpoint", a.state.HasCheckpoint())
	return nil
}

// History returns a copy of the linear history.
func (a *ChatAgent) History(ctx context.Context) ([]memory.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]memory.Message, len(a.state.History))
	copy(out, a.state.History)
	return out, nil
}

// BranchMessages returns a copy of branch id's messages, or nil if unknown.
func (a *ChatAgent) BranchMessages(ctx context.Context, id string) ([]memory.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}
	b, ok := a.state.Branching.Branches[id]
	if !ok {
		return nil, nil
	}
	out := make([]memory.Message, len(b.Messages))
	copy(out, b.Messages)
	return out, nil
}

// FactsJSON returns the sticky facts blob.
func (a *ChatAgent) FactsJSON(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return "", err
	}
	return a.state.FactsJSON, nil
}

// Branches returns the branch IDs in sorted order.
func (a *ChatAgent) Branches(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(a.state.Branching.Branches))
	for id := range a.state.Branching.Branches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ActiveBranchID returns the active branch, or "" when none is active.
func (a *ChatAgent) ActiveBranchID(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return "", err
	}
	return a.state.ActiveBranch(), nil
}

// Reset forgets the conversation in memory and in the store.
func (a *ChatAgent) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = memory.State{}
	a.initialized = true
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	return nil
}

// SetCheckpointAtCurrent marks the current history length as the branching
// base and activates branch "A" if no branch is active.
func (a *ChatAgent) SetCheckpointAtCurrent(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return err
	}

	work := a.state.Clone()
	work.SetCheckpoint(len(memory.NonSystem(work.History)))
	if work.ActiveBranch() == "" {
		work.SetActiveBranch(DefaultBranchID)
	}
	return a.commit(ctx, work)
}

// CreateBranch creates branch id if needed and makes it active.
func (a *ChatAgent) CreateBranch(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("branch id is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return err
	}

	work := a.state.Clone()
	work.SetActiveBranch(id)
	return a.commit(ctx, work)
}

// SwitchBranch activates an existing branch. Unknown IDs are ignored.
func (a *ChatAgent) SwitchBranch(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return err
	}

	if _, ok := a.state.Branching.Branches[id]; !ok {
		return nil
	}
	work := a.state.Clone()
	work.SetActiveBranch(id)
	return a.commit(ctx, work)
}

// HandleUserMessage runs one turn under cfg. Blank input returns an empty
// reply without touching state. A prompt that would not fit the budget
// fails with an error matching llmctx.ErrContextOverflow; in that case, as
// on any completion failure, the user message is not kept.
func (a *ChatAgent) HandleUserMessage(ctx context.Context, text string, cfg strategy.Config) (*Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	mode := cfg.Kind().String()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		a.opts.recorder.RecordTurn(observability.Turn{Mode: mode, Status: observability.StatusEmpty})
		return &Reply{}, nil
	}

	reply, err := a.turn(ctx, trimmed, cfg)

	rec := observability.Turn{Mode: mode, Status: observability.StatusOK, Duration: time.Since(start)}
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

// turn mutates a working copy and commits it only after the reply has been
// appended and saved.
func (a *ChatAgent) turn(ctx context.Context, text string, cfg strategy.Config) (*Reply, error) {
	work := a.state.Clone()
	place(&work, cfg, memory.NewMessage(memory.RoleUser, text))

	if _, ok := cfg.(strategy.StickyFactsConfig); ok {
		updated, err := a.facts.UpdateFacts(ctx, work.FactsJSON, text)
		if err != nil {
			return nil, err
		}
		work.FactsJSON = updated

		// Persist the new facts without the pending user message.
		committed := a.state.Clone()
		committed.FactsJSON = updated
		if err := a.store.Save(ctx, committed); err != nil {
			return nil, fmt.Errorf("save facts: %w", err)
		}
		a.state.FactsJSON = updated
	}

	plan := a.selector.Build(work, buildConfig(work, cfg))

	prompt := make([]memory.Message, 0, len(plan.Messages)+1)
	prompt = append(prompt, memory.NewMessage(memory.RoleSystem, a.opts.systemPrompt))
	prompt = append(prompt, plan.Messages...)

	metrics := TurnMetrics{
		TurnID:                uuid.NewString(),
		EstimatedPromptTokens: a.opts.estimator.EstimateMessages(prompt),
		EstimatedUserTokens:   a.opts.estimator.EstimateTokens(text),
	}
	metrics.EstimatedHistoryTokens = max(0, metrics.EstimatedPromptTokens-metrics.EstimatedUserTokens)

	if err := a.opts.budget.Check(metrics.EstimatedPromptTokens); err != nil {
		a.opts.logger.Warn("context overflow, turn rejected",
			"strategy", plan.DebugLabel,
			"prompt_tokens", metrics.EstimatedPromptTokens,
			"limit", a.opts.budget.ContextLimitTokens)
		return nil, err
	}

	res, err := a.completer.Ask(ctx, prompt, llm.WithMaxTokens(a.opts.budget.MaxOutputTokens))
	if err != nil {
		return nil, fmt.Errorf("ask completion: %w", err)
	}

	answer := strings.TrimSpace(res.Text)
	place(&work, cfg, memory.NewMessage(memory.RoleAssistant, answer))

	if err := a.commit(ctx, work); err != nil {
		return nil, err
	}

	metrics.setUsage(res.Usage, a.opts.costs)

	a.opts.logger.Debug("turn complete",
		"turn_id", metrics.TurnID,
		"strategy", plan.DebugLabel,
		"prompt_tokens", metrics.EstimatedPromptTokens)

	return &Reply{Text: answer, Metrics: metrics, DebugLabel: plan.DebugLabel}, nil
}

// commit saves work and makes it the in-memory state.
func (a *ChatAgent) commit(ctx context.Context, work memory.State) error {
	if err := a.store.Save(ctx, work); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	a.state = work
	return nil
}

// place appends msg to the history, or to the active branch once a
// checkpoint exists under the branching strategy. The configured branch is
// used only when nothing is active.
func place(state *memory.State, cfg strategy.Config, msg memory.Message) {
	b, ok := cfg.(strategy.BranchingConfig)
	if !ok || !state.HasCheckpoint() {
		state.History = append(state.History, msg)
		return
	}

	id := state.ActiveBranch()
	if id == "" {
		id = b.BranchID
	}
	state.AppendToBranch(id, msg)
	state.SetActiveBranch(id)
}

// buildConfig points a branching config at the active branch so the prompt
// reads from the same branch turns are written to.
func buildConfig(state memory.State, cfg strategy.Config) strategy.Config {
	b, ok := cfg.(strategy.BranchingConfig)
	if !ok || state.ActiveBranch() == "" {
		return cfg
	}
	b.BranchID = state.ActiveBranch()
	return b
}
