package strategy

import (
	"fmt"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Branching sends the shared base up to the checkpoint followed by the tail
// of one branch. Without a checkpoint it behaves like a sliding window.
type Branching struct{}

// Build implements Strategy.
func (Branching) Build(state memory.State, cfg Config) Plan {
	c, ok := cfg.(BranchingConfig)
	if !ok {
		panic(mismatch("Branching", KindBranching, cfg))
	}

	history := memory.NonSystem(state.History)

	if !state.HasCheckpoint() {
		return Plan{
			Messages:   memory.TakeLast(history, c.Tail),
			DebugLabel: fmt.Sprintf("Branching(no-checkpoint → tail=%d, hist=%d)", c.Tail, len(history)),
		}
	}

	base := memory.TakeFirst(history, *state.Branching.CheckpointIndex)

	var branchMsgs []memory.Message
	if b, ok := state.Branching.Branches[c.BranchID]; ok {
		branchMsgs = memory.NonSystem(b.Messages)
	}
	branchTail := memory.TakeLast(branchMsgs, c.Tail)

	messages := make([]memory.Message, 0, len(base)+len(branchTail))
	messages = append(messages, base...)
	messages = append(messages, branchTail...)

	return Plan{
		Messages: messages,
		DebugLabel: fmt.Sprintf("Branching(branch=%s, base=%d, branchTail=%d, tail=%d)",
			c.BranchID, len(base), len(branchTail), c.Tail),
	}
}
