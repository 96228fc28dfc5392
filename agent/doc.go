// Package agent provides the conversation orchestrators.
//
// ChatAgent owns one conversation's memory.State. Every public method takes
// a single mutex for its whole duration, including the completion call and
// the persistence write, so turns never interleave. State is loaded lazily
// on first use and handed out only as copies.
//
// # Basic Usage
//
//	backend, _ := session.OpenBackend(ctx, session.DefaultConfig())
//	store := session.NewStateStore(backend, session.DefaultStateKey)
//	a := agent.NewChatAgent(client, store)
//
//	reply, err := a.HandleUserMessage(ctx, "hello", strategy.SlidingWindowConfig{Tail: 12})
//	if errors.Is(err, llmctx.ErrContextOverflow) {
//	    // nothing was sent or saved; reset or pick a narrower strategy
//	}
//
// # Branching
//
// SetCheckpointAtCurrent freezes the current history as the shared base and
// activates branch "A". Later turns under a strategy.BranchingConfig are
// appended to the active branch instead of the history:
//
//	a.SetCheckpointAtCurrent(ctx)
//	a.CreateBranch(ctx, "B")
//	a.SwitchBranch(ctx, "A")
//
// SummaryAgent is the alternative that keeps a running summary plus a
// verbatim tail in a memory.Snapshot.
package agent
