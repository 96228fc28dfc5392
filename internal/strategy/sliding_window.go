package strategy

import (
	"fmt"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// SlidingWindow sends the most recent history messages and nothing else.
type SlidingWindow struct{}

// Build implements Strategy.
func (SlidingWindow) Build(state memory.State, cfg Config) Plan {
	c, ok := cfg.(SlidingWindowConfig)
	if !ok {
		panic(mismatch("SlidingWindow", KindSlidingWindow, cfg))
	}

	return Plan{
		Messages:   memory.TakeLast(memory.NonSystem(state.History), c.Tail),
		DebugLabel: fmt.Sprintf("SlidingWindow(tail=%d)", c.Tail),
	}
}
