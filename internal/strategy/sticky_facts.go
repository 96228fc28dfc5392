package strategy

import (
	"fmt"
	"strings"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// FactsPrefix introduces the facts blob in the synthetic system message.
const FactsPrefix = "FACTS (key-value memory, JSON):\n"

// StickyFacts re-injects the facts blob ahead of the recent history.
type StickyFacts struct{}

// Build implements Strategy.
func (StickyFacts) Build(state memory.State, cfg Config) Plan {
	c, ok := cfg.(StickyFactsConfig)
	if !ok {
		panic(mismatch("StickyFacts", KindStickyFacts, cfg))
	}

	tail := memory.TakeLast(memory.NonSystem(state.History), c.Tail)
	hasFacts := strings.TrimSpace(state.FactsJSON) != ""

	messages := make([]memory.Message, 0, len(tail)+1)
	if hasFacts {
		messages = append(messages, memory.Message{
			Role:    memory.RoleSystem,
			Content: FactsPrefix + state.FactsJSON,
		})
	}
	messages = append(messages, tail...)

	return Plan{
		Messages:   messages,
		DebugLabel: fmt.Sprintf("StickyFacts(tail=%d, facts=%t)", c.Tail, hasFacts),
	}
}
