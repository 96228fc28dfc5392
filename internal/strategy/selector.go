package strategy

import (
	"fmt"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Selector dispatches a configuration to its strategy.
type Selector struct {
	table map[Kind]Strategy
}

// NewSelector returns a selector over the built-in strategies.
func NewSelector() *Selector {
	return NewSelectorWith(map[Kind]Strategy{
		KindSlidingWindow: SlidingWindow{},
		KindStickyFacts:   StickyFacts{},
		KindBranching:     Branching{},
	})
}

// NewSelectorWith builds a selector from an explicit dispatch table. It
// panics unless every kind has a strategy.
func NewSelectorWith(table map[Kind]Strategy) *Selector {
	t := make(map[Kind]Strategy, len(kindNames))
	for kind := range kindNames {
		s, ok := table[kind]
		if !ok || s == nil {
			panic(fmt.Sprintf("strategy: no strategy registered for %v", kind))
		}
		t[kind] = s
	}
	return &Selector{table: t}
}

// Select returns the strategy for cfg.
func (s *Selector) Select(cfg Config) Strategy {
	st, ok := s.table[cfg.Kind()]
	if !ok {
		panic(fmt.Sprintf("strategy: no strategy registered for %v", cfg.Kind()))
	}
	return st
}

// Build selects the strategy for cfg and runs it.
func (s *Selector) Build(state memory.State, cfg Config) Plan {
	return s.Select(cfg).Build(state, cfg)
}
